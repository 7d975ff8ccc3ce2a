package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWith_AttachesContextIDs(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithJobID(context.Background(), "abc12345")
	ctx = WithSessID(ctx, "session_01H")

	With(ctx, &base).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"job_id":"abc12345"`) {
		t.Fatalf("expected job_id in output, got %s", out)
	}
	if !strings.Contains(out, `"session_id":"session_01H"`) {
		t.Fatalf("expected session_id in output, got %s", out)
	}
}

func TestWith_EmptyContextAddsNothing(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	With(context.Background(), &base).Info().Msg("hello")

	out := buf.String()
	if strings.Contains(out, "job_id") || strings.Contains(out, "session_id") {
		t.Fatalf("expected no id fields, got %s", out)
	}
}

func TestTraceDuration_EmitsStartAndFinish(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	done := TraceDuration(&base, "Manager.Complete")
	done()

	out := buf.String()
	if !strings.Contains(out, `"method":"Manager.Complete"`) {
		t.Fatalf("expected method field, got %s", out)
	}
	if !strings.Contains(out, `"message":"start"`) || !strings.Contains(out, `"message":"finish"`) {
		t.Fatalf("expected start and finish events, got %s", out)
	}
	if !strings.Contains(out, `"duration"`) {
		t.Fatalf("expected duration on the finish event, got %s", out)
	}
}
