package sdk_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/ilpi-dev/ilpi-store/internal/config"
	"github.com/ilpi-dev/ilpi-store/internal/controller"
	"github.com/ilpi-dev/ilpi-store/internal/engine"
	"github.com/ilpi-dev/ilpi-store/internal/server"
	"github.com/ilpi-dev/ilpi-store/pkg/schema"
	"github.com/ilpi-dev/ilpi-store/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newLocal() *sdk.Local {
	store := engine.NewStore(engine.NewMemBackend(nil), engine.WithLogger(quiet))
	return sdk.NewLocal(controller.New(store, controller.WithLatency(0), controller.WithLogger(quiet)), nil)
}

const validImport = `{
  "version": 1,
  "employees": [
    {"id": "1", "firstName": "Juan", "lastName": "García", "role": "Admin", "department": "Dirección", "status": "Activo"},
    {"id": "2", "firstName": "Elena", "lastName": "Ruiz", "role": "Empleado", "department": "Cocina", "status": "Vacaciones", "email": "elena@ilpi.es"}
  ],
  "vacations": [
    {"id": "v1", "employeeId": "2", "startDate": "2024-08-01", "endDate": "2024-08-15", "status": "Aprobado"}
  ],
  "lastUpdate": "2024-05-01T09:00:00Z"
}`

func TestParseImport(t *testing.T) {
	p, err := sdk.ParseImport([]byte(validImport))
	require.NoError(t, err)
	require.NotNil(t, p.Employees)
	assert.Len(t, *p.Employees, 2)
	assert.Nil(t, p.Shifts, "absent collections stay untouched")
	require.NotNil(t, p.Vacations)
	assert.Len(t, *p.Vacations, 1)
}

func TestParseImport_Rejects(t *testing.T) {
	malformed := map[string]string{
		"not json":          `{"employees": [`,
		"no employees":      `{"shifts": []}`,
		"employees object":  `{"employees": {"id": "1"}}`,
		"employees null":    `{"employees": null}`,
		"top level array":   `[{"id": "1"}]`,
		"unknown field":     `{"employees": [], "teams": []}`,
		"wrong nested type": `{"employees": [{"id": 1}]}`,
	}
	for name, raw := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := sdk.ParseImport([]byte(raw))
			assert.ErrorIs(t, err, sdk.ErrMalformedImport)
		})
	}

	_, err := sdk.ParseImport([]byte(`{"employees": [{"id": "1", "firstName": "", "lastName": "X", "role": "Jefe", "department": "Cocina", "status": "Activo"}]}`))
	var verrs schema.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := verrs.ToMap()
	assert.Contains(t, fields, "employees[0].firstName")
	assert.Contains(t, fields, "employees[0].role")
}

// consoleBackup is shaped like a file downloaded from the web console:
// free-text emergency contact, locale clock times, millisecond timestamps.
const consoleBackup = `{
  "version": 2,
  "employees": [
    {"id": "1", "firstName": "Juan", "lastName": "García", "email": "juan@ilpi.es", "phone": "600112233",
     "dni": "12345678X", "address": "Calle Mayor 12, Villa Joyosa", "birthDate": "1985-05-20",
     "maritalStatus": "Casado/a", "gender": "Masculino", "role": "Admin", "department": "Dirección",
     "status": "Activo", "hireDate": "2022-01-15", "profileImage": "https://picsum.photos/seed/juan/100",
     "emergencyContact": "Pedro 611223344"},
    {"id": "k3x9a2b1c", "firstName": "Ana", "lastName": "López", "email": "", "phone": "622000111",
     "dni": "", "address": "", "birthDate": "", "maritalStatus": "Soltero/a", "gender": "Femenino",
     "role": "Empleado", "department": "Atención al Público", "status": "Activo", "hireDate": "2024-05-06",
     "profileImage": "https://picsum.photos/seed/0.42/100", "emergencyContact": ""}
  ],
  "shifts": [
    {"id": "s1", "employeeId": "1", "date": "2024-05-06", "entryTime": "02:05 PM", "exitTime": "10:30 PM"},
    {"id": "s2", "employeeId": "k3x9a2b1c", "date": "2024-05-06", "entryTime": "09:00", "location": {"lat": 38.5, "lng": -0.23}}
  ],
  "vacations": [],
  "lastUpdate": "2024-05-06T21:30:12.345Z"
}`

func TestParseImport_ConsoleBackup(t *testing.T) {
	p, err := sdk.ParseImport([]byte(consoleBackup))
	require.NoError(t, err)
	require.NotNil(t, p.Employees)
	employees := *p.Employees
	require.Len(t, employees, 2)
	require.NotNil(t, employees[0].EmergencyContact)
	assert.Equal(t, "Pedro 611223344", employees[0].EmergencyContact.Name)
	require.NotNil(t, p.Shifts)
	assert.Equal(t, "02:05 PM", (*p.Shifts)[0].EntryTime)

	// a re-export keeps the fields as the console wrote them
	env := schema.Envelope{Version: 2}.Apply(p)
	out, err := sdk.Export(env)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"emergencyContact": "Pedro 611223344"`)
	assert.Contains(t, string(out), `"entryTime": "02:05 PM"`)
}

func TestParseImport_TypeMismatchIsNotAGateError(t *testing.T) {
	_, err := sdk.ParseImport([]byte(`{"employees": [{"id": "1", "emergencyContact": 42}]}`))
	require.ErrorIs(t, err, sdk.ErrMalformedImport)
	assert.NotContains(t, err.Error(), "employees array")
	assert.Contains(t, err.Error(), "decode")

	_, err = sdk.ParseImport([]byte(`{"shifts": []}`))
	require.ErrorIs(t, err, sdk.ErrMalformedImport)
	assert.Contains(t, err.Error(), "employees array")
}

func TestParseImport_EmptyEmployeesIsAccepted(t *testing.T) {
	p, err := sdk.ParseImport([]byte(`{"employees": []}`))
	require.NoError(t, err)
	require.NotNil(t, p.Employees)
	assert.Empty(t, *p.Employees)
}

func TestExport(t *testing.T) {
	env := schema.Envelope{Version: 2, LastUpdate: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	out, err := sdk.Export(env)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n  \"employees\": []")

	// an export is a valid import
	_, err = sdk.ParseImport(out)
	assert.NoError(t, err)

	assert.Equal(t, "ilpi_db_v2_2024-05-01.json", sdk.ExportFileName(env, env.LastUpdate))

	// late evening in Madrid is already the next day in UTC
	madrid := time.FixedZone("CEST", 2*60*60)
	assert.Equal(t, "ilpi_db_v2_2024-05-01.json", sdk.ExportFileName(env, time.Date(2024, 5, 2, 1, 30, 0, 0, madrid)))
}

func TestLocal_ImportDoesNotWriteOnFailure(t *testing.T) {
	ctx := context.Background()
	api := newLocal()
	defer api.Close()

	before, err := api.FetchAllData(ctx)
	require.NoError(t, err)

	for _, raw := range []string{`{"shifts": []}`, `{"employees": [`, `{"foo": 1}`, `{"employees": [], "foo": 1}`} {
		_, err = api.ImportData(ctx, []byte(raw))
		require.ErrorIs(t, err, sdk.ErrMalformedImport, raw)

		after, err := api.FetchAllData(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after, raw)
	}

	env, err := api.ImportData(ctx, []byte(validImport))
	require.NoError(t, err)
	assert.Len(t, env.Employees, 2)
	assert.Len(t, env.Vacations, 1)
	assert.Equal(t, engine.CurrentVersion, env.Version)
}

// serve runs a plain TCP router over api and returns the listener.
func serve(t *testing.T, api sdk.API) net.Listener {
	t.Helper()
	router := server.NewRouter(api, quiet)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go router.HandleConnection(conn)
		}
	}()
	t.Cleanup(func() { listener.Close() })
	return listener
}

func TestClient_Integration(t *testing.T) {
	ctx := context.Background()
	listener := serve(t, newLocal())

	client, err := sdk.Connect(listener.Addr().String(), sdk.WithoutTLS(), sdk.WithClientLogger(quiet))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(ctx))

	env, err := client.FetchAllData(ctx)
	require.NoError(t, err)
	require.Len(t, env.Employees, 1)

	exit := "17:00"
	shifts := []schema.ShiftRecord{{ID: "s1", EmployeeID: "1", Date: "2024-05-01", EntryTime: "09:00", ExitTime: &exit}}
	got, err := client.SyncShifts(ctx, shifts)
	require.NoError(t, err)
	assert.Equal(t, shifts, got)

	vacations, err := client.SyncVacations(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, vacations)

	employees := append(env.Employees, schema.Employee{ID: "2", FirstName: "Elena", LastName: "Ruiz"})
	_, err = client.SyncEmployees(ctx, employees)
	require.NoError(t, err)

	env, err = client.FetchAllData(ctx)
	require.NoError(t, err)
	assert.Len(t, env.Employees, 2)
	assert.Equal(t, shifts, env.Shifts)

	env, err = client.ImportData(ctx, []byte(validImport))
	require.NoError(t, err)
	assert.Len(t, env.Vacations, 1)
	assert.Equal(t, shifts, env.Shifts, "import leaves absent collections alone")

	_, err = client.ImportData(ctx, []byte(`{}`))
	assert.ErrorIs(t, err, sdk.ErrMalformedImport)

	env, err = client.ResetSystem(ctx)
	require.NoError(t, err)
	assert.Len(t, env.Employees, 1)
	assert.Empty(t, env.Shifts)
}

type failingAPI struct{ sdk.API }

func (failingAPI) FetchAllData(context.Context) (schema.Envelope, error) {
	return schema.Envelope{}, errors.New("disk full")
}

func TestClient_RemoteErrorsAreNotRetried(t *testing.T) {
	listener := serve(t, failingAPI{API: newLocal()})

	client, err := sdk.Connect(listener.Addr().String(), sdk.WithoutTLS(), sdk.WithClientLogger(quiet))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.FetchAllData(context.Background())
	require.Error(t, err)
	assert.Equal(t, "disk full", err.Error())
}

func TestClient_RetryLogic(t *testing.T) {
	api := newLocal()
	router := server.NewRouter(api, quiet)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()

	go func() {
		conn, _ := listener.Accept()
		if conn != nil {
			router.HandleConnection(conn)
			conn.Close()
		}
	}()

	client, err := sdk.Connect(addr, sdk.WithoutTLS(), sdk.WithClientLogger(quiet))
	require.NoError(t, err)
	defer client.Close()

	// Close the listener so no more connections can be accepted
	listener.Close()

	// The accepted connection still serves this one
	require.NoError(t, client.Ping(context.Background()))

	// Dropping the server side forces reconnects, all of which fail
	client.Close()
	_, err = client.FetchAllData(context.Background())
	assert.ErrorContains(t, err, "failed after 3 attempts")
}

func TestNew_FallsBackToEmbedded(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	cfg := config.Defaults()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Sync.Latency = 0
	cfg.Client.StoreAddr = addr
	cfg.Server.DisableTLS = true

	api, err := sdk.New(context.Background(), &cfg, quiet)
	require.NoError(t, err)
	defer api.Close()
	assert.IsType(t, &sdk.Local{}, api)

	env, err := api.FetchAllData(context.Background())
	require.NoError(t, err)
	assert.Len(t, env.Employees, 1)
}

func TestNew_UsesRemoteWhenReachable(t *testing.T) {
	listener := serve(t, newLocal())

	cfg := config.Defaults()
	cfg.Client.StoreAddr = listener.Addr().String()
	cfg.Server.DisableTLS = true

	api, err := sdk.New(context.Background(), &cfg, quiet)
	require.NoError(t, err)
	defer api.Close()
	assert.IsType(t, &sdk.Client{}, api)

	env, err := api.FetchAllData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.CurrentVersion, env.Version)
}
