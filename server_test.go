package segstore

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/hugr-lab/segstore/auth"
	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/flight"
)

func startTestServer(t *testing.T, config Config) *flight.Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer(ServerOptions(config)...)
	require.NoError(t, NewServer(grpcServer, config))
	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(grpcServer.Stop)

	client, err := flight.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func withToken(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestServerRead(t *testing.T) {
	lib := newTradesLibrary(t, memory.DefaultAllocator)
	level := slog.LevelDebug
	client := startTestServer(t, Config{Library: lib, LogLevel: &level, MaxMessageSize: 16 << 20})

	td, err := flight.NewTicket("trades", filter.Col("price").Ge(1), "id")
	require.NoError(t, err)
	tbl, err := client.Read(context.Background(), td)
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(4), tbl.NumRows())
	assert.Equal(t, int64(1), tbl.NumCols())

	_, err = client.Read(context.Background(), &flight.TicketData{Symbol: "quotes"})
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Contains(t, err.Error(), "Symbol does not exist for the latest version from symbol quotes")
}

func TestServerAuth(t *testing.T) {
	lib := newTradesLibrary(t, memory.DefaultAllocator)
	rec := int64Record(t, memory.DefaultAllocator, "n", 1, 2)
	defer rec.Release()
	_, err := lib.Write(context.Background(), "secret", rec)
	require.NoError(t, err)

	client := startTestServer(t, Config{
		Library: lib,
		Auth: &auth.StaticTokens{
			Tokens: map[string]string{"t-alice": "alice", "t-bob": "bob"},
			Grants: map[string][]string{"bob": {"trades"}},
		},
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := client.Read(context.Background(), &flight.TicketData{Symbol: "trades"})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("granted", func(t *testing.T) {
		tbl, err := client.Read(withToken("t-bob"), &flight.TicketData{Symbol: "trades"})
		require.NoError(t, err)
		defer tbl.Release()
		assert.Equal(t, int64(5), tbl.NumRows())
	})

	t.Run("not granted", func(t *testing.T) {
		_, err := client.Read(withToken("t-bob"), &flight.TicketData{Symbol: "secret"})
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("listing is filtered", func(t *testing.T) {
		infos, err := client.Symbols(withToken("t-bob"))
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, "trades", infos[0].Symbol)

		infos, err = client.Symbols(withToken("t-alice"))
		require.NoError(t, err)
		assert.Len(t, infos, 2)
	})
}

func TestNewServerInvalidConfig(t *testing.T) {
	err := NewServer(grpc.NewServer(), Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestServerOptions(t *testing.T) {
	assert.Empty(t, ServerOptions(Config{}))
	assert.Len(t, ServerOptions(Config{MaxMessageSize: 1 << 20}), 2)
	assert.Len(t, ServerOptions(Config{Auth: &auth.StaticTokens{}, MaxMessageSize: 1 << 20}), 4)
}
