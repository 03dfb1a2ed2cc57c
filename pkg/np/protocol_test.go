package np

import "testing"

func TestValidateCommandEnvelope(t *testing.T) {
	cmd, err := NewCommand(CmdSetPlayback, SetPlaybackBody{Status: "playing"})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected error for missing envelope fields")
	}

	cmd.ID = "id"
	cmd.TS = 1
	cmd.From = "tester"
	if err := ValidateCommandEnvelope(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCommandEnvelopeMissingBody(t *testing.T) {
	cmd := CommandEnvelope{ID: "id", Type: CmdGetState, TS: 1, From: "tester"}
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTopics(t *testing.T) {
	if got := TopicState(BaseTopic, "np:transport:host"); got != "np/v1/node/np:transport:host/state" {
		t.Fatalf("unexpected state topic %q", got)
	}
	if got := TopicReply(BaseTopic, "np-cli"); got != "np/v1/reply/np-cli" {
		t.Fatalf("unexpected reply topic %q", got)
	}
}
