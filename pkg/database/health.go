package database

import (
	"context"
	"time"
)

// HealthStatus reports connectivity to the store backing the RAG index.
// RagEntries counts the enabled rag_entries rows; the remaining fields come
// from the connection pool.
type HealthStatus struct {
	Status          string `json:"status"`
	PingMs          int64  `json:"ping_ms"`
	RagEntries      int    `json:"rag_entries"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	MaxOpenConns    int    `json:"max_open_conns"`
}

// Health pings the database and counts the enabled RAG entries.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()

	if err := c.db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status: "unhealthy",
			PingMs: time.Since(start).Milliseconds(),
		}, err
	}

	status := &HealthStatus{
		Status: "healthy",
		PingMs: time.Since(start).Milliseconds(),
	}

	counts, err := NewRagStore(c.db).CountByCategory(ctx)
	if err != nil {
		status.Status = "unhealthy"
		return status, err
	}
	for _, n := range counts {
		status.RagEntries += n
	}

	stats := c.db.Stats()
	status.OpenConnections = stats.OpenConnections
	status.InUse = stats.InUse
	status.Idle = stats.Idle
	status.WaitCount = stats.WaitCount
	status.MaxOpenConns = stats.MaxOpenConnections
	return status, nil
}
