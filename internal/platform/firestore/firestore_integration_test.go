//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	pconfig "github.com/ambershop/api/internal/platform/config"
	pfirestore "github.com/ambershop/api/internal/platform/firestore"
)

const emulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

type promoCounter struct {
	Code       string `firestore:"code"`
	UsageCount int    `firestore:"usageCount"`
}

func TestProviderAgainstEmulator(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	requireDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := runEmulator(t, port)
	defer stopContainer(containerID)
	awaitEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "test-project",
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if _, err := provider.Client(ctx); err != nil {
		t.Fatalf("client: %v", err)
	}

	promos := pfirestore.NewCollection[promoCounter](provider, "promotions")

	if err := promos.Put(ctx, "SAVE10", promoCounter{Code: "SAVE10", UsageCount: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}

	doc, err := promos.Get(ctx, "SAVE10")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != "SAVE10" || doc.Data.UsageCount != 1 {
		t.Fatalf("unexpected document: %#v", doc)
	}
	if doc.UpdateTime.IsZero() {
		t.Fatalf("update time not set")
	}

	docs, err := promos.Select(ctx, nil)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}

	if _, err := promos.Get(ctx, "MISSING"); err == nil {
		t.Fatalf("expected not found")
	} else {
		var cls interface{ IsNotFound() bool }
		if !errors.As(err, &cls) || !cls.IsNotFound() {
			t.Fatalf("expected not-found classification, got %v", err)
		}
	}

	// Usage increment through the transactional path.
	if err := provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := promos.Doc(ctx, "SAVE10")
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var counter promoCounter
		if err := snap.DataTo(&counter); err != nil {
			return err
		}
		counter.UsageCount++
		return tx.Set(ref, counter)
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}

	doc, err = promos.Get(ctx, "SAVE10")
	if err != nil {
		t.Fatalf("get after transaction: %v", err)
	}
	if doc.Data.UsageCount != 2 {
		t.Fatalf("usage count = %d, want 2", doc.Data.UsageCount)
	}

	canceledCtx, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if err := provider.RunTransaction(canceledCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		return nil
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("allocate port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func runEmulator(t *testing.T, port int) string {
	t.Helper()
	cmd := exec.Command("docker",
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		emulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("start emulator: %v - %s", err, out)
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, "docker", "stop", id).Run()
}

func awaitEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		lastErr = err
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("emulator not ready: %v", lastErr)
}

func requireDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "docker", "info").Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}
}
