package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/dataset"
	"github.com/Skufu/heartrisk/internal/domain"
	"github.com/Skufu/heartrisk/internal/model"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HEARTRISK_CONFIG", "PORT", "GIN_MODE", "STATIC_DIR", "DATABASE_URL", "MODEL_PATH", "DATASET_PATH", "LOG_LEVEL", "CORS_ORIGINS", "TRAIN_IF_MISSING"} {
		t.Setenv(key, "")
	}
	t.Setenv("ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
}

// writeDataset writes n labelled rows with a learnable signal.
func writeDataset(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heart.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write(append(domain.FieldNames(), dataset.TargetColumn))
	for i := 0; i < n; i++ {
		fv := domain.FeatureVector{
			Age:      30 + (i*7)%50,
			Sex:      i % 2,
			CP:       (i / 2) % 4,
			Trtbps:   100 + (i*13)%80,
			Chol:     150 + (i*31)%250,
			FBS:      (i / 3) % 2,
			RestECG:  (i / 5) % 3,
			Thalachh: 90 + (i*17)%100,
			Exng:     (i / 7) % 2,
			CA:       (i / 11) % 4,
		}
		target := 0
		if float64(fv.Age-55)/10+float64(fv.CP)-float64(fv.CA)+float64(fv.Thalachh-140)/30 > 0 {
			target = 1
		}
		if i%10 == 0 {
			target = 1 - target
		}
		rec := make([]string, 0, len(domain.Schema)+1)
		for _, name := range domain.FieldNames() {
			v, _ := fv.Get(name)
			rec = append(rec, strconv.Itoa(v))
		}
		_ = w.Write(append(rec, strconv.Itoa(target)))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "heartrisk dev") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestTrainCommand(t *testing.T) {
	isolateEnv(t)
	bundle := filepath.Join(t.TempDir(), "models", "model.json")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"train", "--dataset", writeDataset(t, 200), "--out", bundle})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m model.Metrics
	if err := json.Unmarshal(out.Bytes(), &m); err != nil {
		t.Fatalf("metrics not printed as JSON: %v\n%s", err, out.String())
	}
	if m.TestSize+m.TrainSize != 200 || m.Accuracy < 0.7 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if _, err := model.LoadBundle(bundle); err != nil {
		t.Fatalf("bundle not loadable: %v", err)
	}
}

func TestTrainCommand_UsesConfig(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	bundle := filepath.Join(dir, "from-config.json")
	cfgPath := filepath.Join(dir, "config.yml")
	yml := "model:\n  dataset_path: " + writeDataset(t, 120) + "\n  bundle_path: " + bundle + "\n  test_fraction: 0.25\n"
	if err := os.WriteFile(cfgPath, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "train"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(bundle); err != nil {
		t.Fatalf("expected bundle at configured path: %v", err)
	}
}

func TestTrainCommand_MissingDataset(t *testing.T) {
	isolateEnv(t)
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"train", "--dataset", filepath.Join(t.TempDir(), "nope.csv"), "--out", filepath.Join(t.TempDir(), "m.json")})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for a missing dataset")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PORT", "99999")

	if err := runServe(context.Background(), ""); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestServe_MissingModel(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATASET_PATH", filepath.Join(t.TempDir(), "missing.csv"))

	err := runServe(context.Background(), "")
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected model_unavailable, got %v", err)
	}
}

func TestWaitForShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	server := &http.Server{Handler: http.NotFoundHandler()}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitForShutdown(ctx, server, serveErr, time.Second, zap.NewNop()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	for range serveErr {
	}
	if _, err := http.Get("http://" + ln.Addr().String()); err == nil {
		t.Fatal("server still accepting connections")
	}
}

func TestWaitForShutdown_ListenError(t *testing.T) {
	serveErr := make(chan error, 1)
	serveErr <- errors.New("address already in use")

	err := waitForShutdown(context.Background(), &http.Server{}, serveErr, time.Second, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "address already in use") {
		t.Fatalf("expected listen error, got %v", err)
	}
}
