package rootsup

import (
	"log/slog"
	"testing"
)

func TestNewWiresAllChildSupervisors(t *testing.T) {
	t.Parallel()
	s := New(Config{Mode: ModeStandby, StorageRoot: "/tmp", ExsnapPath: "/nonexistent/exsnap"}, nil, slog.Default())

	if s.captureSup == nil || s.analysisSup == nil || s.alertEngine == nil || s.notifierSup == nil || s.playbackSup == nil {
		t.Fatalf("expected New to construct every child supervisor")
	}
}

func TestModeConstantsAreDistinct(t *testing.T) {
	t.Parallel()
	if ModeRun == ModeStandby {
		t.Fatalf("expected ModeRun and ModeStandby to be distinct values")
	}
}
