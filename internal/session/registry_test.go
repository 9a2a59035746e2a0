package session

import (
	"encoding/json"
	"testing"
	"time"
)

type receivedFrame struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

func recvFrame(t *testing.T, c *Client) receivedFrame {
	t.Helper()
	select {
	case payload := <-c.Send:
		var frame receivedFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.Fatalf("malformed frame: %v", err)
		}
		return frame
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for frame")
		return receivedFrame{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.Send:
		t.Fatalf("unexpected frame: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	reg := NewRegistry(nil)
	c := NewClient()

	reg.Join("ABCD", c, RoleFollower)
	reg.Join("ABCD", c, RoleFollower)

	if got := reg.MemberCount("ABCD"); got != 1 {
		t.Fatalf("expected 1 member, got %d", got)
	}
	if got := reg.FollowerCount("ABCD"); got != 1 {
		t.Fatalf("expected 1 follower, got %d", got)
	}
}

func TestRejoinAsLeaderUpgradesRole(t *testing.T) {
	reg := NewRegistry(nil)
	c := NewClient()

	reg.Join("ABCD", c, RoleFollower)
	reg.Join("ABCD", c, RoleLeader)

	if got := reg.FollowerCount("ABCD"); got != 0 {
		t.Fatalf("expected 0 followers after upgrade, got %d", got)
	}
	if got := reg.MemberCount("ABCD"); got != 1 {
		t.Fatalf("expected 1 member, got %d", got)
	}
}

func TestLeaveRemovesEmptyRoom(t *testing.T) {
	reg := NewRegistry(nil)
	c := NewClient()

	reg.Join("ABCD", c, RoleLeader)
	reg.Leave("ABCD", c)

	if got := reg.MemberCount("ABCD"); got != 0 {
		t.Fatalf("expected empty room, got %d members", got)
	}
	// Leaving again is harmless.
	reg.Leave("ABCD", c)
}

func TestLeaveAllUsesReverseIndex(t *testing.T) {
	reg := NewRegistry(nil)
	c := NewClient()
	other := NewClient()

	reg.Join("ABCD", c, RoleFollower)
	reg.Join("WXYZ", c, RoleWatcher)
	reg.Join("ABCD", other, RoleLeader)

	codes := reg.LeaveAll(c)
	if len(codes) != 2 {
		t.Fatalf("expected to leave 2 rooms, left %v", codes)
	}
	if got := reg.MemberCount("ABCD"); got != 1 {
		t.Fatalf("expected leader to remain, got %d members", got)
	}
	if got := reg.MemberCount("WXYZ"); got != 0 {
		t.Fatalf("expected WXYZ gone, got %d members", got)
	}
	if codes := reg.LeaveAll(c); len(codes) != 0 {
		t.Fatalf("second LeaveAll should be empty, got %v", codes)
	}
}

func TestBroadcastExcludesSenderAndOtherRooms(t *testing.T) {
	reg := NewRegistry(nil)
	leader := NewClient()
	follower1 := NewClient()
	follower2 := NewClient()
	outsider := NewClient()

	reg.Join("ABCD", leader, RoleLeader)
	reg.Join("ABCD", follower1, RoleFollower)
	reg.Join("ABCD", follower2, RoleFollower)
	reg.Join("WXYZ", outsider, RoleFollower)

	reg.Broadcast("ABCD", "location:updated", map[string]interface{}{"lat": 39.95}, leader)

	for _, c := range []*Client{follower1, follower2} {
		frame := recvFrame(t, c)
		if frame.Event != "location:updated" {
			t.Fatalf("unexpected event %q", frame.Event)
		}
		if frame.Data["lat"] != 39.95 {
			t.Fatalf("unexpected payload: %v", frame.Data)
		}
	}
	assertNoFrame(t, leader)
	assertNoFrame(t, outsider)
}

func TestSendTargetsOneClient(t *testing.T) {
	reg := NewRegistry(nil)
	a := NewClient()
	b := NewClient()
	reg.Join("ABCD", a, RoleFollower)
	reg.Join("ABCD", b, RoleFollower)

	reg.Send(a, "follow:started", map[string]interface{}{"accessCode": "ABCD"})

	frame := recvFrame(t, a)
	if frame.Event != "follow:started" {
		t.Fatalf("unexpected event %q", frame.Event)
	}
	assertNoFrame(t, b)
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	reg := NewRegistry(nil)
	c := NewClient()
	reg.Join("ABCD", c, RoleFollower)

	// Fill the buffer and then some; Broadcast must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			reg.Broadcast("ABCD", "location:updated", map[string]interface{}{"i": i}, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast blocked on a slow client")
	}
}
