package vacuum

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

const testUsername = "JH1-EU-TEST0001"

// =============================================================================
// Fake Robot
// =============================================================================

type published struct {
	topic   string
	msg     string
	payload []byte
}

// fakeRobot is a Transport that behaves like the robot's broker: commands
// change its internal state and, when answering is enabled, a
// REQUEST-CURRENT-STATE is answered synchronously with CURRENT-STATE.
type fakeRobot struct {
	mu         sync.Mutex
	handler    func(topic string, payload []byte) error
	subscribed []string
	messages   []published

	lifecycle LifecycleState
	powerMode PowerMode
	battery   int

	answer       bool
	publishErr   error
	subscribeErr error
}

func newFakeRobot(lifecycle LifecycleState) *fakeRobot {
	return &fakeRobot{
		lifecycle: lifecycle,
		powerMode: PowerModeFull,
		battery:   80,
		answer:    true,
	}
}

func (r *fakeRobot) Subscribe(topic string, _ byte, handler func(string, []byte) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subscribeErr != nil {
		return r.subscribeErr
	}
	r.subscribed = append(r.subscribed, topic)
	r.handler = handler
	return nil
}

func (r *fakeRobot) Publish(topic string, payload []byte, _ byte, _ bool) error {
	var cmd struct {
		Msg  string `json:"msg"`
		Data struct {
			Mode PowerMode `json:"currentVacuumPowerMode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return err
	}

	r.mu.Lock()
	if r.publishErr != nil {
		r.mu.Unlock()
		return r.publishErr
	}
	r.messages = append(r.messages, published{topic: topic, msg: cmd.Msg, payload: payload})

	switch cmd.Msg {
	case MsgStart, MsgResume:
		r.lifecycle = LifecycleCleaning
	case MsgPause:
		r.lifecycle = LifecycleCleaningPaused
	case MsgAbort:
		r.lifecycle = LifecycleCleaningAborted
	case MsgStateSet:
		r.powerMode = cmd.Data.Mode
	}

	answer := cmd.Msg == MsgRequestCurrentState && r.answer
	handler := r.handler
	status := r.statusLocked()
	r.mu.Unlock()

	if answer && handler != nil {
		return handler(fmt.Sprintf("N223/%s/status", testUsername), status)
	}
	return nil
}

func (r *fakeRobot) statusLocked() []byte {
	return []byte(fmt.Sprintf(
		`{"msg":"CURRENT-STATE","state":%q,"currentVacuumPowerMode":%q,"batteryChargeLevel":%d,"time":"2026-10-16T12:00:00Z"}`,
		r.lifecycle, r.powerMode, r.battery,
	))
}

// status returns the robot's current CURRENT-STATE payload.
func (r *fakeRobot) status() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

func (r *fakeRobot) setAnswer(answer bool) {
	r.mu.Lock()
	r.answer = answer
	r.mu.Unlock()
}

// sent returns the msg values published so far.
func (r *fakeRobot) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.msg
	}
	return out
}

func (r *fakeRobot) count(msg string) int {
	n := 0
	for _, m := range r.sent() {
		if m == msg {
			n++
		}
	}
	return n
}

func (r *fakeRobot) reset() {
	r.mu.Lock()
	r.messages = nil
	r.mu.Unlock()
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newConnectedSession connects a session to robot and syncs the initial state.
func newConnectedSession(t *testing.T, robot *fakeRobot) *Session {
	t.Helper()

	s := NewSession(Options{
		Username:       testUsername,
		Transport:      robot,
		CommandTimeout: time.Second,
	})
	if err := s.HandleConnect(); err != nil {
		t.Fatalf("HandleConnect() error = %v", err)
	}
	if !s.Snapshot().Synced() {
		t.Fatal("session not synced after connect")
	}
	robot.reset()
	return s
}

// =============================================================================
// Session Tests
// =============================================================================

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession(Options{Username: testUsername, Transport: newFakeRobot(LifecycleDockedCharged)})

	if s.CommandTimeout() != DefaultCommandTimeout {
		t.Errorf("CommandTimeout() = %v, want %v", s.CommandTimeout(), DefaultCommandTimeout)
	}
	if s.statusTopic != "N223/"+testUsername+"/status" {
		t.Errorf("statusTopic = %q", s.statusTopic)
	}
	if s.commandTopic != "N223/"+testUsername+"/command" {
		t.Errorf("commandTopic = %q", s.commandTopic)
	}
	if !s.IsDocked() || s.BatteryLevel() != 0 || s.IsQuietPower() {
		t.Errorf("initial snapshot = %+v, want docked, full power, 0%%", s.Snapshot())
	}
}

func TestHandleConnect_SubscribesAndRefreshes(t *testing.T) {
	robot := newFakeRobot(LifecycleDockedCharging)
	robot.battery = 42
	s := NewSession(Options{Username: testUsername, Transport: robot})

	if err := s.HandleConnect(); err != nil {
		t.Fatalf("HandleConnect() error = %v", err)
	}

	if len(robot.subscribed) != 1 || robot.subscribed[0] != "N223/"+testUsername+"/status" {
		t.Errorf("subscribed = %v", robot.subscribed)
	}
	if got := robot.sent(); len(got) != 1 || got[0] != MsgRequestCurrentState {
		t.Errorf("published = %v, want [%s]", got, MsgRequestCurrentState)
	}
	if robot.messages[0].topic != "N223/"+testUsername+"/command" {
		t.Errorf("refresh topic = %q", robot.messages[0].topic)
	}
	if !s.IsCharging() || s.BatteryLevel() != 42 {
		t.Errorf("snapshot = %+v, want charging at 42%%", s.Snapshot())
	}
	if s.RefreshPending() {
		t.Error("refresh still pending after status arrived")
	}
}

func TestHandleConnect_SubscribeError(t *testing.T) {
	robot := newFakeRobot(LifecycleDockedCharged)
	robot.subscribeErr = errors.New("not connected")
	s := NewSession(Options{Username: testUsername, Transport: robot})

	err := s.HandleConnect()
	if !errors.Is(err, ErrNotSubscribed) {
		t.Errorf("HandleConnect() error = %v, want ErrNotSubscribed", err)
	}
	if len(robot.sent()) != 0 {
		t.Error("refresh published without a status subscription")
	}
}

func TestHandleConnect_BurstCollapsesRefresh(t *testing.T) {
	robot := newFakeRobot(LifecycleDockedCharged)
	robot.answer = false
	s := NewSession(Options{Username: testUsername, Transport: robot})

	for i := 0; i < 5; i++ {
		if err := s.HandleConnect(); err != nil {
			t.Fatalf("HandleConnect() #%d error = %v", i, err)
		}
	}

	if got := robot.count(MsgRequestCurrentState); got != 1 {
		t.Errorf("REQUEST-CURRENT-STATE published %d times, want 1", got)
	}
	if !s.RefreshPending() {
		t.Error("RefreshPending() = false while unanswered")
	}
}

func TestRequestRefresh_SuppressedUntilStatus(t *testing.T) {
	robot := newFakeRobot(LifecycleDockedCharged)
	robot.answer = false
	s := NewSession(Options{Username: testUsername, Transport: robot})

	if err := s.RequestRefresh(); err != nil {
		t.Fatalf("RequestRefresh() error = %v", err)
	}
	if err := s.RequestRefresh(); err != nil {
		t.Fatalf("RequestRefresh() error = %v", err)
	}
	if got := robot.count(MsgRequestCurrentState); got != 1 {
		t.Fatalf("published %d refreshes while pending, want 1", got)
	}

	if err := s.HandleStatusMessage("t", robot.status()); err != nil {
		t.Fatalf("HandleStatusMessage() error = %v", err)
	}

	if err := s.RequestRefresh(); err != nil {
		t.Fatalf("RequestRefresh() error = %v", err)
	}
	if got := robot.count(MsgRequestCurrentState); got != 2 {
		t.Errorf("published %d refreshes after status, want 2", got)
	}
}

func TestRequestRefresh_StalePendingExpires(t *testing.T) {
	robot := newFakeRobot(LifecycleDockedCharged)
	robot.answer = false
	clock := newFakeClock()
	s := NewSession(Options{
		Username:       testUsername,
		Transport:      robot,
		CommandTimeout: 5 * time.Second,
		Now:            clock.Now,
	})

	_ = s.RequestRefresh()
	clock.Advance(4 * time.Second)
	_ = s.RequestRefresh()
	if got := robot.count(MsgRequestCurrentState); got != 1 {
		t.Fatalf("published %d refreshes inside the timeout, want 1", got)
	}

	clock.Advance(2 * time.Second)
	_ = s.RequestRefresh()
	if got := robot.count(MsgRequestCurrentState); got != 2 {
		t.Errorf("published %d refreshes after the pending one went stale, want 2", got)
	}
}

func TestRequestRefresh_PublishErrorClearsGuard(t *testing.T) {
	robot := newFakeRobot(LifecycleDockedCharged)
	robot.publishErr = errors.New("broker gone")
	s := NewSession(Options{Username: testUsername, Transport: robot})

	if err := s.RequestRefresh(); !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("RequestRefresh() error = %v, want ErrRefreshFailed", err)
	}
	if s.RefreshPending() {
		t.Error("refresh left pending after publish failure")
	}

	robot.publishErr = nil
	robot.answer = false
	if err := s.RequestRefresh(); err != nil {
		t.Fatalf("RequestRefresh() error = %v", err)
	}
	if got := robot.count(MsgRequestCurrentState); got != 1 {
		t.Errorf("published %d refreshes after recovery, want 1", got)
	}
}

func TestHandleStatusMessage_CurrentState(t *testing.T) {
	clock := newFakeClock()
	s := NewSession(Options{Username: testUsername, Transport: newFakeRobot(LifecycleDockedCharged), Now: clock.Now})

	payload := `{"msg":"CURRENT-STATE","state":"FULL_CLEAN_RUNNING","currentVacuumPowerMode":"fullPower","batteryChargeLevel":73,"time":"2018-04-01T19:21:18Z"}`
	if err := s.HandleStatusMessage("N223/x/status", []byte(payload)); err != nil {
		t.Fatalf("HandleStatusMessage() error = %v", err)
	}

	if !s.IsCleaning() {
		t.Error("IsCleaning() = false, want true")
	}
	if s.BatteryLevel() != 73 {
		t.Errorf("BatteryLevel() = %d, want 73", s.BatteryLevel())
	}
	if s.IsQuietPower() {
		t.Error("IsQuietPower() = true, want false")
	}
	if s.IsDocked() {
		t.Error("IsDocked() = true, want false")
	}

	snap := s.Snapshot()
	if !snap.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("UpdatedAt = %v, want receipt time %v", snap.UpdatedAt, clock.Now())
	}
	if !snap.DeviceTime.Equal(time.Date(2018, 4, 1, 19, 21, 18, 0, time.UTC)) {
		t.Errorf("DeviceTime = %v", snap.DeviceTime)
	}
}

func TestHandleStatusMessage_MalformedLeavesStateUnchanged(t *testing.T) {
	robot := newFakeRobot(LifecycleCleaning)
	robot.battery = 55
	s := newConnectedSession(t, robot)
	before := s.Snapshot()

	payloads := []string{
		`not json`,
		`{"state":"INACTIVE_CHARGED"}`,
		`{"msg":"CURRENT-STATE","state":"INACTIVE_CHARGED"}`,
		`[1,2,3]`,
	}

	for _, p := range payloads {
		err := s.HandleStatusMessage("N223/x/status", []byte(p))
		if !errors.Is(err, ErrMalformedStatus) {
			t.Errorf("HandleStatusMessage(%q) error = %v, want ErrMalformedStatus", p, err)
		}
	}

	if after := s.Snapshot(); after != before {
		t.Errorf("snapshot changed: before %+v, after %+v", before, after)
	}
}

func TestHandleStatusMessage_UnknownTypeIgnored(t *testing.T) {
	robot := newFakeRobot(LifecycleCleaning)
	s := newConnectedSession(t, robot)
	before := s.Snapshot()

	err := s.HandleStatusMessage("t", []byte(`{"msg":"STATE-CHANGE","newstate":"INACTIVE_CHARGED"}`))
	if err != nil {
		t.Errorf("HandleStatusMessage() error = %v, want nil", err)
	}
	if s.Snapshot() != before {
		t.Error("unknown message type changed the snapshot")
	}
}

func TestHandleStatusMessage_ResolvesAllWaiters(t *testing.T) {
	robot := newFakeRobot(LifecycleDockedCharged)
	s := NewSession(Options{Username: testUsername, Transport: robot})

	_, first := s.addWaiter()
	_, second := s.addWaiter()

	if err := s.HandleStatusMessage("t", robot.status()); err != nil {
		t.Fatal(err)
	}

	for i, ch := range []<-chan State{first, second} {
		select {
		case st := <-ch:
			if st.BatteryLevel != 80 {
				t.Errorf("waiter %d got battery %d, want 80", i, st.BatteryLevel)
			}
		default:
			t.Errorf("waiter %d not resolved", i)
		}
	}
	if s.pendingWaiters() != 0 {
		t.Errorf("pendingWaiters() = %d after reconcile, want 0", s.pendingWaiters())
	}

	// A waiter registered afterwards waits for the next status.
	_, late := s.addWaiter()
	select {
	case <-late:
		t.Error("late waiter resolved by an earlier status")
	default:
	}
}

func TestListeners(t *testing.T) {
	robot := newFakeRobot(LifecycleCleaning)
	s := NewSession(Options{Username: testUsername, Transport: robot})

	var prevs, nexts []State
	s.AddListener(func(State, State) { panic("listener bug") })
	s.AddListener(func(prev, next State) {
		prevs = append(prevs, prev)
		nexts = append(nexts, next)
	})
	s.AddListener(nil)

	if err := s.HandleStatusMessage("t", robot.status()); err != nil {
		t.Fatal(err)
	}

	if len(nexts) != 1 {
		t.Fatalf("listener called %d times, want 1", len(nexts))
	}
	if prevs[0].Lifecycle != LifecycleDockedCharged {
		t.Errorf("prev lifecycle = %q, want default", prevs[0].Lifecycle)
	}
	if nexts[0].Lifecycle != LifecycleCleaning {
		t.Errorf("next lifecycle = %q, want cleaning", nexts[0].Lifecycle)
	}
}

func TestConcurrentReadsDuringReconcile(t *testing.T) {
	robot := newFakeRobot(LifecycleCleaning)
	s := NewSession(Options{Username: testUsername, Transport: robot})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				if snap.BatteryLevel < 0 || snap.BatteryLevel > 100 {
					t.Errorf("battery out of range: %d", snap.BatteryLevel)
					return
				}
			}
		}()
	}

	for level := 0; level <= 100; level++ {
		payload := fmt.Sprintf(`{"msg":"CURRENT-STATE","state":"FULL_CLEAN_RUNNING","currentVacuumPowerMode":"halfPower","batteryChargeLevel":%d}`, level)
		if err := s.HandleStatusMessage("t", []byte(payload)); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()

	if s.BatteryLevel() != 100 {
		t.Errorf("BatteryLevel() = %d, want 100", s.BatteryLevel())
	}
}
