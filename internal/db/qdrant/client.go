// Package qdrant implements db.VectorStore on a single Qdrant collection over gRPC.
//
// Hash keys map to deterministic point UUIDs; the original key is kept in the
// payload. The FT index name carried by definitions and queries is ignored:
// the store is bound to its configured collection.
package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/kailas-cloud/simproj/internal/db"
)

// Compile-time check: Store implements db.VectorStore.
var _ db.VectorStore = (*Store)(nil)

// Config holds connection settings for a Qdrant instance.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Store wraps gRPC clients for Qdrant's collections and points services.
type Store struct {
	conn        *grpc.ClientConn
	health      pb.QdrantClient
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
}

// NewStore dials the Qdrant gRPC endpoint. The connection is lazy; use WaitForReady.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}

	return &Store{
		conn:        conn,
		health:      pb.NewQdrantClient(conn),
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  cfg.Collection,
	}, nil
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Ping calls the Qdrant health check.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.health.HealthCheck(ctx, &pb.HealthCheckRequest{}); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close tears down the underlying gRPC connection.
func (s *Store) Close() {
	_ = s.conn.Close()
}

// WaitForReady polls Ping until Qdrant responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitReady(ctx, "qdrant", timeout, s.Ping)
}
