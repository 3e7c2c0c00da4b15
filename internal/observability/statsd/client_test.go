package statsd

import (
	"net"
	"testing"
	"time"
)

func TestSanitizePrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  allianceform  ": "allianceform",
		"..foo..":          "foo",
		".":                "",
		"":                 "",
	}

	for input, want := range tests {
		if got := sanitizePrefix(input); got != want {
			t.Fatalf("sanitizePrefix(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSanitizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" notify.delivery ": "notify.delivery",
		"bad:name|x":        "bad_name_x",
		"multi space":       "multi_space",
		"":                  "",
	}

	for input, want := range tests {
		if got := sanitizeMetricName(input); got != want {
			t.Fatalf("sanitizeMetricName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatLine(t *testing.T) {
	t.Parallel()

	client := &Client{
		prefix:     "allianceform",
		globalTags: map[string]string{"env": "prod"},
	}

	got := client.formatLine("notify.delivery", "1|c", map[string]string{
		"result": "success",
	})
	want := "allianceform.notify.delivery:1|c|#env:prod,result:success"
	if got != want {
		t.Fatalf("formatLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatLine_LocalTagsOverrideGlobal(t *testing.T) {
	t.Parallel()

	client := &Client{globalTags: map[string]string{"env": "prod"}}

	got := client.formatLine("m", "1|c", map[string]string{"env": "stage"})
	want := "m:1|c|#env:stage"
	if got != want {
		t.Fatalf("formatLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatLine_EmptyNameDropped(t *testing.T) {
	t.Parallel()

	client := &Client{}
	if got := client.formatLine("  ", "1|c", nil); got != "" {
		t.Fatalf("formatLine with empty name = %q, want empty string", got)
	}
}

func TestCloneTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	original := map[string]string{"env": "prod"}

	cloned := cloneTags(original)
	if cloned == nil {
		t.Fatal("cloneTags returned nil map")
	}

	cloned["env"] = "stage"
	if original["env"] != "prod" {
		t.Fatal("cloneTags did not copy values")
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{
		enabled: true,
		conn:    clientConn,
	}

	if !client.Enabled() {
		t.Fatal("expected client.Enabled to report true with active connection")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if client.Enabled() {
		t.Fatal("expected client.Enabled to report false after Close")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestDisabledClientIsSafe(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if client.Enabled() {
		t.Fatal("disabled client reports enabled")
	}

	// Emission on a disabled client is a no-op, not a panic.
	client.Count("notify.delivery", 1, nil)
	client.Gauge("notify.queue_depth", 3, nil)
	client.Timing("notify.delivery_duration", time.Second, nil)
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	var client *Client
	if client.Enabled() {
		t.Fatal("nil client reports enabled")
	}
	client.Count("m", 1, nil)
	if err := client.Close(); err != nil {
		t.Fatalf("nil Close error: %v", err)
	}
}
