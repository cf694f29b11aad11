package health

import (
	"context"
	"errors"
	"testing"
)

type mockStorePinger struct {
	err error
}

func (m *mockStorePinger) Ping(context.Context) error { return m.err }

type mockDirectoryChecker struct {
	err error
}

func (m *mockDirectoryChecker) HealthCheck(context.Context) error { return m.err }

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockDirectoryChecker{})

	report := svc.Check(context.Background())

	if report.Status != Healthy {
		t.Errorf("expected Healthy, got %s", report.Status)
	}
	if report.Checks["store"] != CheckOK {
		t.Errorf("expected store ok, got %s", report.Checks["store"])
	}
	if report.Checks["directory"] != CheckOK {
		t.Errorf("expected directory ok, got %s", report.Checks["directory"])
	}
}

func TestCheck_StoreDown(t *testing.T) {
	svc := New(&mockStorePinger{err: errors.New("connection refused")}, &mockDirectoryChecker{})

	report := svc.Check(context.Background())

	if report.Status != Degraded {
		t.Errorf("expected Degraded, got %s", report.Status)
	}
	if report.Checks["store"] != CheckError {
		t.Errorf("expected store error, got %s", report.Checks["store"])
	}
	if report.Checks["directory"] != CheckOK {
		t.Errorf("expected directory unaffected, got %s", report.Checks["directory"])
	}
}

func TestCheck_DirectoryDown(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockDirectoryChecker{err: errors.New("503")})

	report := svc.Check(context.Background())

	if report.Status != Degraded {
		t.Errorf("expected Degraded, got %s", report.Status)
	}
	if report.Checks["directory"] != CheckError {
		t.Errorf("expected directory error, got %s", report.Checks["directory"])
	}
}

func TestCheck_NilDirectorySkipped(t *testing.T) {
	svc := New(&mockStorePinger{}, nil)

	report := svc.Check(context.Background())

	if report.Status != Healthy {
		t.Errorf("expected Healthy, got %s", report.Status)
	}
	if _, ok := report.Checks["directory"]; ok {
		t.Error("expected no directory check when checker is nil")
	}
}
