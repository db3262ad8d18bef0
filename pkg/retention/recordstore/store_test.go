package recordstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chryso-hq/forms/pkg/retention"
)

type storeUnderTest interface {
	retention.RecordStore
}

func backends(t *testing.T) map[string]func() storeUnderTest {
	return map[string]func() storeUnderTest{
		"memory": func() storeUnderTest { return NewMemoryStore() },
		"sqlite": func() storeUnderTest {
			s, err := OpenSQL(SQLConfig{
				Dialect: DialectSQLite,
				DSN:     filepath.Join(t.TempDir(), "records.db"),
				Migrate: true,
			})
			require.NoError(t, err)
			return s
		},
	}
}

func seed(t *testing.T, store retention.RecordStore, now time.Time) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		status := "closed"
		if i%2 == 1 {
			status = "open"
		}
		require.NoError(t, store.Insert(ctx, &retention.Record{
			ID:             fmt.Sprintf("old-%d", i),
			OrganizationID: "org-1",
			Collection:     "forms",
			CreatedAt:      now.AddDate(-2, 0, i),
			SizeBytes:      100,
			Data:           map[string]any{"status": status, "site": "Plant 4"},
		}))
	}
	require.NoError(t, store.Insert(ctx, &retention.Record{
		ID: "new-0", OrganizationID: "org-1", Collection: "forms",
		CreatedAt: now.Add(-time.Hour), Data: map[string]any{"status": "closed"},
	}))
	require.NoError(t, store.Insert(ctx, &retention.Record{
		ID: "other-org", OrganizationID: "org-2", Collection: "forms",
		CreatedAt: now.AddDate(-2, 0, 0), Data: map[string]any{"status": "closed"},
	}))
	require.NoError(t, store.Insert(ctx, &retention.Record{
		ID: "report-0", OrganizationID: "org-1", Collection: "reports",
		CreatedAt: now.AddDate(-2, 0, 0),
	}))
}

func ids(records []*retention.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestRecordStore_Find(t *testing.T) {
	now := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(-1, 0, 0)

	tests := []struct {
		name   string
		filter retention.RecordFilter
		want   []string
	}{
		{
			name: "age and organization",
			filter: retention.RecordFilter{
				Collection: "forms", OrganizationID: "org-1", CreatedBefore: cutoff,
			},
			want: []string{"old-0", "old-1", "old-2", "old-3"},
		},
		{
			name: "excluded ids",
			filter: retention.RecordFilter{
				Collection: "forms", OrganizationID: "org-1", CreatedBefore: cutoff,
				ExcludeIDs: []string{"old-1", "old-3"},
			},
			want: []string{"old-0", "old-2"},
		},
		{
			name: "conditions",
			filter: retention.RecordFilter{
				Collection: "forms", OrganizationID: "org-1", CreatedBefore: cutoff,
				Conditions: []retention.Condition{
					{Field: "status", Operator: retention.OpEquals, Value: "closed"},
					{Field: "site", Operator: retention.OpContains, Value: "plant"},
				},
			},
			want: []string{"old-0", "old-2"},
		},
		{
			name:   "other collection",
			filter: retention.RecordFilter{Collection: "reports", OrganizationID: "org-1", CreatedBefore: cutoff},
			want:   []string{"report-0"},
		},
		{
			name:   "unknown collection",
			filter: retention.RecordFilter{Collection: "dashboards", CreatedBefore: cutoff},
			want:   []string{},
		},
	}

	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()
			seed(t, store, now)

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := store.Find(context.Background(), tt.filter)
					require.NoError(t, err)
					assert.Equal(t, tt.want, ids(got))
				})
			}
		})
	}
}

func TestRecordStore_FindDecodesDocuments(t *testing.T) {
	now := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()
			seed(t, store, now)

			got, err := store.Find(context.Background(), retention.RecordFilter{
				Collection: "forms", OrganizationID: "org-1", CreatedBefore: now,
				ExcludeIDs: []string{"old-1", "old-2", "old-3", "new-0"},
			})
			require.NoError(t, err)
			require.Len(t, got, 1)

			rec := got[0]
			assert.Equal(t, "old-0", rec.ID)
			assert.Equal(t, "forms", rec.Collection)
			assert.Equal(t, int64(100), rec.SizeBytes)
			assert.True(t, rec.CreatedAt.Equal(now.AddDate(-2, 0, 0)))
			assert.Equal(t, "closed", rec.Data["status"])
		})
	}
}

func TestRecordStore_Delete(t *testing.T) {
	now := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()
			seed(t, store, now)
			ctx := context.Background()

			n, err := store.Delete(ctx, "forms", []string{"old-0", "old-1", "missing"})
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			// Deleting again is idempotent.
			n, err = store.Delete(ctx, "forms", []string{"old-0", "old-1"})
			require.NoError(t, err)
			assert.Equal(t, int64(0), n)

			// Ids are scoped to the collection.
			n, err = store.Delete(ctx, "forms", []string{"report-0"})
			require.NoError(t, err)
			assert.Equal(t, int64(0), n)

			n, err = store.Delete(ctx, "forms", nil)
			require.NoError(t, err)
			assert.Equal(t, int64(0), n)

			remaining, err := store.Find(ctx, retention.RecordFilter{Collection: "forms"})
			require.NoError(t, err)
			assert.Len(t, remaining, 4)
		})
	}
}

func TestOpenSQL_Errors(t *testing.T) {
	_, err := OpenSQL(SQLConfig{Dialect: "oracle", DSN: "x"})
	assert.Error(t, err)

	_, err = OpenSQL(SQLConfig{Dialect: DialectSQLite})
	assert.Error(t, err)
}
