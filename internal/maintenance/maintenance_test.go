package maintenance

import (
	"testing"

	"github.com/nodewatch/nodewatch/internal/store"
)

func TestRunNow(t *testing.T) {
	s, err := store.Bootstrap(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	svc := NewService(s.DB(), DefaultSchedule)
	if err := svc.RunNow(); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestStartStop(t *testing.T) {
	s, err := store.Bootstrap(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	svc := NewService(s.DB(), "0 7 * * *")
	svc.Start()
	svc.Stop()
}

func TestValidateSchedule(t *testing.T) {
	if err := ValidateSchedule("0 7 * * *"); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	if err := ValidateSchedule("not a schedule"); err == nil {
		t.Fatal("invalid schedule accepted")
	}
	if err := ValidateSchedule("@daily"); err != nil {
		t.Fatalf("descriptor rejected: %v", err)
	}
}

func TestNewService_InvalidScheduleStillRuns(t *testing.T) {
	s, err := store.Bootstrap(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	svc := NewService(s.DB(), "garbage")
	if err := svc.RunNow(); err != nil {
		t.Fatalf("manual run must still work: %v", err)
	}
}
