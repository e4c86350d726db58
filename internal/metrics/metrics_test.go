package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gisst-archive/gisst/internal/catalog"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "gisst.db")
	db, err := catalog.New(catalog.Config{Driver: "sqlite", DSN: dsn, Logger: zap.NewNop()})
	require.NoError(t, err)
	return db
}

func TestCensusSetsRowCounts(t *testing.T) {
	db := newTestDB(t)
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.census(context.Background(), db, zap.NewNop())

	require.Equal(t, float64(0), testutil.ToFloat64(m.TableRows.WithLabelValues("creators")))
}

func TestStartTableCensusStopsOnContextCancel(t *testing.T) {
	db := newTestDB(t)
	reg := prometheus.NewRegistry()
	m := New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	m.StartTableCensus(ctx, db, 10*time.Millisecond, zap.NewNop())
	cancel()

	// Give the goroutine a moment to observe cancellation; it must not
	// panic or leak into subsequent test runs touching a closed db.
	time.Sleep(20 * time.Millisecond)
}

func TestRecordsCreatedCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordsCreated.WithLabelValues("state").Inc()
	m.RecordsCreated.WithLabelValues("state").Inc()

	require.Equal(t, float64(2), testutil.ToFloat64(m.RecordsCreated.WithLabelValues("state")))
}
