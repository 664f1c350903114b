// Package insights asks a generative model for staffing advice. It is an
// optional collaborator: without credentials every call degrades gracefully.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
)

// Placeholder is returned by ShiftInsights whenever the model cannot answer.
const Placeholder = "No se pudieron generar los insights en este momento."

const (
	insightsSystem = "Eres un consultor experto en RRHH para hostelería española. Tu tono es profesional, analítico y constructivo."
	insightsPrompt = `Analiza los siguientes datos de empleados y turnos del restaurante ILPI en Villa Joyosa.
Proporciona un resumen ejecutivo breve sobre la productividad y posibles conflictos de horario o sugerencias de optimización para los equipos de cocina y sala.

Empleados: %s
Turnos Recientes: %s`
	rotaPrompt = `Genera una propuesta de rotación (Rotary) para el departamento de %s. Considera que el restaurante está en Alicante y hay picos de fines de semana. Personal disponible: %s
Responde con un objeto JSON con los campos "proposal" (texto) y "efficiencyScore" (número).`
)

// ErrUnavailable is returned by a Generator that has no model behind it.
var ErrUnavailable = errors.New("insights: no model configured")

// Generator produces text from a prompt. With jsonMode the reply must be a
// single JSON document.
type Generator interface {
	Generate(ctx context.Context, system, prompt string, jsonMode bool) (string, error)
}

// Unavailable is the Generator used when no API key is configured.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, string, string, bool) (string, error) {
	return "", ErrUnavailable
}

// Proposal is a suggested rota for one department.
type Proposal struct {
	Proposal        string  `json:"proposal"`
	EfficiencyScore float64 `json:"efficiencyScore"`
}

type Service struct {
	gen Generator
	log *slog.Logger
}

func NewService(gen Generator, log *slog.Logger) *Service {
	if gen == nil {
		gen = Unavailable{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{gen: gen, log: log}
}

// ShiftInsights summarizes productivity and schedule conflicts. It never
// fails: any error is logged and Placeholder is returned instead.
func (s *Service) ShiftInsights(ctx context.Context, employees []schema.Employee, shifts []schema.ShiftRecord) string {
	emp, err := json.Marshal(employees)
	if err != nil {
		s.log.Error("insights: encode employees", "error", err)
		return Placeholder
	}
	sh, err := json.Marshal(shifts)
	if err != nil {
		s.log.Error("insights: encode shifts", "error", err)
		return Placeholder
	}

	text, err := s.gen.Generate(ctx, insightsSystem, fmt.Sprintf(insightsPrompt, emp, sh), false)
	if err != nil {
		s.log.Warn("insights unavailable", "error", err)
		return Placeholder
	}
	if text == "" {
		return Placeholder
	}
	return text
}

// RotaSuggestion proposes a rotation for the employees of department.
func (s *Service) RotaSuggestion(ctx context.Context, department schema.Department, employees []schema.Employee) (Proposal, error) {
	if !department.Valid() {
		return Proposal{}, fmt.Errorf("insights: unknown department %q", department)
	}
	staff := make([]schema.Employee, 0, len(employees))
	for _, e := range employees {
		if e.Department == department {
			staff = append(staff, e)
		}
	}
	payload, err := json.Marshal(staff)
	if err != nil {
		return Proposal{}, err
	}

	text, err := s.gen.Generate(ctx, "", fmt.Sprintf(rotaPrompt, department, payload), true)
	if err != nil {
		return Proposal{}, fmt.Errorf("rota suggestion: %w", err)
	}
	var p Proposal
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Proposal{}, fmt.Errorf("rota suggestion: decode reply: %w", err)
	}
	return p, nil
}
