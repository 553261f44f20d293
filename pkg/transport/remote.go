package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/log"
	"github.com/commontoolsinc/memory/pkg/wire"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnectTimeout aborts a stuck handshake and triggers a reconnect.
const ConnectTimeout = 30 * time.Second

// ErrClosed is returned by Consumer methods called after Close.
var ErrClosed = errors.New("transport: closed")

// Signer produces the issuer DID and signature bytes for a command
// envelope. Signing itself is an external collaborator: this package
// only carries whatever bytes the signer returns.
type Signer func(ability wire.Ability, payload []byte) (issuer string, signature []byte, err error)

type pendingCall struct {
	reply chan wire.Frame
}

type trackedSubscription struct {
	request wire.SubscribeRequest
	ch      chan Push
}

// remote is the framed-websocket Consumer. Outgoing commands are signed
// envelopes; on disconnect they queue and drain before the reader loop
// resumes. A reconnect re-issues every tracked subscription, including
// the space's own commit-head subscription.
type remote struct {
	rawURL string
	space  fact.Space
	sign   Signer
	dialer *websocket.Dialer

	mu             sync.Mutex
	conn           *websocket.Conn
	closed         bool
	pending        map[string]pendingCall
	queue          [][]byte
	subscriptions  map[string]*trackedSubscription
	reconnectCount int
	writeMu        sync.Mutex
	onReconnect    func(count int)
}

// SetReconnectHandler installs fn to run on every reconnect, after the
// queue has drained but before tracked subscriptions are re-issued. The
// replica owning this transport uses it to poll the commit log and call
// Replica.Reset before its schema subscriptions are replayed, per
// spec.md §4.6's reconnect sequence.
func (r *remote) SetReconnectHandler(fn func(count int)) {
	r.mu.Lock()
	r.onReconnect = fn
	r.mu.Unlock()
}

// NewRemote dials the given websocket URL as is and returns a Consumer
// backed by it. engine.Session passes its Config.APIURL here unchanged;
// WebsocketURL is not applied on that path.
func NewRemote(wsURL string, space fact.Space, sign Signer) (Consumer, error) {
	if _, err := url.Parse(wsURL); err != nil {
		return nil, fmt.Errorf("transport: invalid url %q: %w", wsURL, err)
	}
	r := &remote{
		rawURL:        wsURL,
		space:         space,
		sign:          sign,
		dialer:        &websocket.Dialer{HandshakeTimeout: ConnectTimeout},
		pending:       make(map[string]pendingCall),
		subscriptions: make(map[string]*trackedSubscription),
	}
	if err := r.connect(); err != nil {
		return nil, err
	}
	go r.readLoop()
	return r, nil
}

func (r *remote) connect() error {
	conn, _, err := r.dialer.Dial(r.rawURL, nil)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", r.rawURL, err)
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	return nil
}

// reconnect redials immediately (the server's rate limit is the throttle
// of record), drains the outgoing queue, resets replica-visible state by
// re-issuing every tracked subscription, and resumes the reader.
func (r *remote) reconnect() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.reconnectCount++
	subs := make([]*trackedSubscription, 0, len(r.subscriptions))
	for _, s := range r.subscriptions {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for {
		if err := r.connect(); err != nil {
			log.WithComponent("transport").Warn().Err(err).Msg("reconnect attempt failed")
			continue
		}
		break
	}

	r.mu.Lock()
	queued := r.queue
	r.queue = nil
	hook := r.onReconnect
	count := r.reconnectCount
	r.mu.Unlock()
	for _, frame := range queued {
		r.writeRaw(frame)
	}

	if hook != nil {
		hook(count)
	}

	if r.reconnectCount > 1 {
		for _, sub := range subs {
			if _, err := r.Subscribe(context.Background(), sub.request); err != nil {
				log.WithComponent("transport").Error().Err(err).Msg("failed to re-issue subscription after reconnect")
			}
		}
	}

	go r.readLoop()
}

func (r *remote) readLoop() {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.WithComponent("transport").Warn().Err(err).Msg("connection lost, reconnecting")
			r.reconnect()
			return
		}
		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.WithComponent("transport").Error().Err(err).Msg("malformed frame")
			continue
		}
		r.handleFrame(frame)
	}
}

func (r *remote) handleFrame(frame wire.Frame) {
	if frame.IsPush() {
		r.mu.Lock()
		sub, ok := r.subscriptions[frame.SubscriptionID]
		r.mu.Unlock()
		if !ok {
			return
		}
		select {
		case sub.ch <- Push{Effect: *frame.Effect}:
		default:
		}
		return
	}

	r.mu.Lock()
	call, ok := r.pending[frame.ID]
	if ok {
		delete(r.pending, frame.ID)
	}
	r.mu.Unlock()
	if ok {
		call.reply <- frame
	}
}

func (r *remote) send(ability wire.Ability, payload any) (wire.Frame, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return wire.Frame{}, fmt.Errorf("transport: marshal %s payload: %w", ability, err)
	}
	issuer, sig, err := r.sign(ability, body)
	if err != nil {
		return wire.Frame{}, fmt.Errorf("transport: sign %s: %w", ability, err)
	}

	id := uuid.NewString()
	frame := wire.Frame{
		ID: id,
		Envelope: &wire.Envelope{
			Ability:   ability,
			Issuer:    issuer,
			Payload:   body,
			Signature: sig,
		},
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return wire.Frame{}, fmt.Errorf("transport: marshal frame: %w", err)
	}

	reply := make(chan wire.Frame, 1)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return wire.Frame{}, ErrClosed
	}
	r.pending[id] = pendingCall{reply: reply}
	r.mu.Unlock()

	r.writeRaw(data)

	select {
	case resp := <-reply:
		return resp, nil
	case <-time.After(ConnectTimeout):
		return wire.Frame{}, fmt.Errorf("transport: %s timed out after %s", ability, ConnectTimeout)
	}
}

func (r *remote) writeRaw(data []byte) {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		r.mu.Lock()
		r.queue = append(r.queue, data)
		r.mu.Unlock()
		return
	}

	r.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, data)
	r.writeMu.Unlock()
	if err != nil {
		r.mu.Lock()
		r.queue = append(r.queue, data)
		r.mu.Unlock()
	}
}

func (r *remote) Transact(_ context.Context, req wire.TransactRequest) (TransactResult, error) {
	frame, err := r.send(wire.AbilityTransact, req)
	if err != nil {
		return TransactResult{}, err
	}
	ch := make(chan TransactOutcome, 1)
	var resp wire.TransactResponse
	if len(frame.Ok) > 0 {
		if err := json.Unmarshal(frame.Ok, &resp); err != nil {
			ch <- TransactOutcome{Err: err}
			return TransactResult{Confirmed: ch}, nil
		}
	}
	if resp.Error != nil {
		ch <- TransactOutcome{Err: resp.Error}
	} else {
		ch <- TransactOutcome{Commit: resp.Commit}
	}
	return TransactResult{Confirmed: ch}, nil
}

func (r *remote) Query(_ context.Context, req wire.QueryRequest) (QueryResult, error) {
	frame, err := r.send(wire.AbilityQuery, req)
	if err != nil {
		return QueryResult{}, err
	}
	var resp wire.QueryResponse
	if len(frame.Ok) > 0 {
		if err := json.Unmarshal(frame.Ok, &resp); err != nil {
			return QueryResult{}, err
		}
	}
	return QueryResult{Facts: resp.Ok}, nil
}

func (r *remote) Subscribe(_ context.Context, req wire.SubscribeRequest) (SubscribeResult, error) {
	frame, err := r.send(wire.AbilityQuerySubscribe, req)
	ready := make(chan error, 1)
	if err != nil {
		ready <- err
		return SubscribeResult{Ready: ready}, err
	}

	var ack wire.SubscribeAck
	if len(frame.Ok) > 0 {
		if err := json.Unmarshal(frame.Ok, &ack); err != nil {
			ready <- err
			return SubscribeResult{Ready: ready}, err
		}
	}

	ch := make(chan Push, 64)
	r.mu.Lock()
	r.subscriptions[ack.SubscriptionID] = &trackedSubscription{request: req, ch: ch}
	r.mu.Unlock()

	ready <- nil
	return SubscribeResult{SubscriptionID: ack.SubscriptionID, Facts: ack.Ok, Effects: ch, Ready: ready}, nil
}

func (r *remote) Unsubscribe(_ context.Context, subscriptionID string) error {
	_, err := r.send(wire.AbilityQueryUnsubscribe, wire.UnsubscribeRequest{Source: subscriptionID})
	r.mu.Lock()
	if sub, ok := r.subscriptions[subscriptionID]; ok {
		close(sub.ch)
		delete(r.subscriptions, subscriptionID)
	}
	r.mu.Unlock()
	return err
}

func (r *remote) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	for _, sub := range r.subscriptions {
		close(sub.ch)
	}
	r.subscriptions = nil
	r.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// CommitHeadSelector builds the unconditional subscription to a space's
// own commit log, re-issued on every reconnect alongside tracked schema
// subscriptions.
func CommitHeadSelector(space fact.Space) wire.Selector {
	return wire.Selector{Space: space, Of: []fact.Entity{fact.Entity(space)}, The: fact.CommitMediaType}
}

// WebsocketURL derives the websocket URL for a space from an API base
// URL, per the TOOLSHED_API_URL convention: swap the scheme and append
// the storage memory path.
func WebsocketURL(apiURL string, space fact.Space) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("transport: invalid api url %q: %w", apiURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/storage/memory"
	q := u.Query()
	q.Set("space", string(space))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
