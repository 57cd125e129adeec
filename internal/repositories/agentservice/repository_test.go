package agentservice

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/logging"
)

// fakeDB backs the repository with an in-memory name list. Only the
// methods the repository touches do anything.
type fakeDB struct {
	mu    sync.Mutex
	names []string
}

func (f *fakeDB) SelectContext(_ context.Context, dest any, _ string, _ ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := dest.(*[]string); ok {
		*d = append([]string(nil), f.names...)
	}
	return nil
}

func (f *fakeDB) ExecContext(_ context.Context, _ string, args ...any) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// insert arg order: id, name, normalized_name, created_at
	if len(args) >= 3 {
		if name, ok := args[2].(string); ok {
			f.names = append(f.names, name)
		}
	}
	return driver.RowsAffected(1), nil
}

func (f *fakeDB) BeginTxx(context.Context, *sql.TxOptions) (*sqlx.Tx, error) { return nil, nil }
func (f *fakeDB) Close() error                                               { return nil }
func (f *fakeDB) GetContext(context.Context, any, string, ...any) error      { return nil }
func (f *fakeDB) PingContext(context.Context) error                          { return nil }
func (f *fakeDB) QueryRowxContext(context.Context, string, ...any) *sqlx.Row { return nil }
func (f *fakeDB) QueryxContext(context.Context, string, ...any) (*sqlx.Rows, error) {
	return nil, nil
}
func (f *fakeDB) SetConnMaxLifetime(time.Duration) {}
func (f *fakeDB) SetMaxIdleConns(int)              {}
func (f *fakeDB) SetMaxOpenConns(int)              {}
func (f *fakeDB) Unsafe() *sqlx.DB                 { return nil }
func (f *fakeDB) GetTx(ctx context.Context, _ *sql.TxOptions) (context.Context, database.Tx, error) {
	return ctx, nil, nil
}

func TestIsKnownAgentService_CachedLookup(t *testing.T) {
	db := &fakeDB{names: []string{"REGISTERED AGENTS INC"}}
	repo := NewRepository(db, logging.NewNoop())
	ctx := context.Background()

	known, err := repo.IsKnownAgentService(ctx, "REGISTERED AGENTS INC")
	require.NoError(t, err)
	assert.True(t, known)

	known, err = repo.IsKnownAgentService(ctx, "MARIA GARCIA")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestCreate_VisibleWithoutCacheExpiry(t *testing.T) {
	db := &fakeDB{}
	repo := NewRepository(db, logging.NewNoop())
	ctx := context.Background()

	// prime the cache before the insert
	known, err := repo.IsKnownAgentService(ctx, "NORTHWEST REGISTERED AGENT")
	require.NoError(t, err)
	require.False(t, known)

	_, err = repo.Create(ctx, "Northwest Registered Agent")
	require.NoError(t, err)

	known, err = repo.IsKnownAgentService(ctx, "NORTHWEST REGISTERED AGENT")
	require.NoError(t, err)
	assert.True(t, known)
}

func TestIsKnownAgentService_ConcurrentWithCreate(t *testing.T) {
	// Scorer lookups run while agent services are registered over HTTP;
	// readers must never observe a map being written.
	db := &fakeDB{}
	repo := NewRepository(db, logging.NewNoop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, err := repo.IsKnownAgentService(ctx, "CORPORATE CREATIONS")
				assert.NoError(t, err)
			}
		}()
	}

	for i := 0; i < 50; i++ {
		_, err := repo.Create(ctx, fmt.Sprintf("Agent Service %d", i))
		require.NoError(t, err)
	}
	wg.Wait()
}
