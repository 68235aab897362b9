package scabbard

import (
	"encoding/binary"
	"encoding/json"
	"sort"
	"time"

	"github.com/splinter-rs/splinter-go/log"
	"github.com/splinter-rs/splinter-go/splintererror"
	"github.com/splinter-rs/splinter-go/store/scabbardstore"
	"github.com/splinter-rs/splinter-go/wire"
)

// ConsensusSender delivers a ConsensusMessage to another service instance of
// the same scabbard circuit.
type ConsensusSender interface {
	SendConsensus(serviceID string, msg wire.ConsensusMessage) error
}

// epochState tracks this service's in-flight participation in one 2PC
// epoch, coordinator or participant, per spec §4.6.
type epochState struct {
	epoch       uint64
	batch       wire.Batch
	preRoot     string
	postRoot    string
	votes       map[string]bool // coordinator only
	decided     bool
	alarm       time.Time
}

// Consensus implements the two-phase-commit engine of spec §4.6 (component
// C6): coordinator election by lexicographically-smallest service id,
// vote-request/vote-response/commit/abort, and an alarm-driven timeout that
// aborts an epoch no quorum response arrives for.
type Consensus struct {
	thisService  string
	participants []string // every other replica taking part in this service's 2PC
	store        scabbardstore.Store
	sender       ConsensusSender
	executor     Executor
	state        *StateTree
	log          log.Logger

	alarmTimeout time.Duration

	current *epochState
}

// NewConsensus constructs a Consensus engine for one scabbard service
// instance. participants excludes thisService.
func NewConsensus(thisService string, participants []string, store scabbardstore.Store, sender ConsensusSender, executor Executor, state *StateTree, alarmTimeout time.Duration, logger log.Logger) *Consensus {
	if executor == nil {
		executor = StubExecutor{}
	}
	if logger == nil {
		logger = log.NewNoOp()
	}
	if alarmTimeout <= 0 {
		alarmTimeout = 30 * time.Second
	}
	return &Consensus{
		thisService:  thisService,
		participants: append([]string(nil), participants...),
		store:        store,
		sender:       sender,
		executor:     executor,
		state:        state,
		log:          logger,
		alarmTimeout: alarmTimeout,
	}
}

// Coordinator returns the service id that coordinates the current roster,
// the tie-break rule of spec §4.6: the lexicographically smallest service
// id among every member, independent of who proposes a batch.
func (c *Consensus) Coordinator() string {
	all := append([]string{c.thisService}, c.participants...)
	sort.Strings(all)
	return all[0]
}

func (c *Consensus) IsCoordinator() bool { return c.Coordinator() == c.thisService }

// ProposeBatch starts a new epoch for batch. Only the coordinator may call
// this; other services learn of the batch via VoteRequest.
func (c *Consensus) ProposeBatch(batch wire.Batch) error {
	if !c.IsCoordinator() {
		return splintererror.New(splintererror.InvalidArgument, "scabbard: only the coordinator %s may propose a batch", c.Coordinator())
	}
	if c.current != nil && !c.current.decided {
		return splintererror.New(splintererror.ConstraintViolation, "scabbard: epoch %d still in flight", c.current.epoch)
	}

	last, _, err := c.store.GetLastCommitEntry(c.thisService)
	if err != nil {
		return err
	}
	epoch := last.Epoch + 1

	value, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	c.current = &epochState{
		epoch:   epoch,
		batch:   batch,
		votes:   make(map[string]bool),
		alarm:   time.Now().Add(c.alarmTimeout),
	}

	if err := c.store.AddCommitEntry(c.thisService, wire.CommitEntry{Epoch: epoch, Value: value, Decision: wire.DecisionPending}); err != nil {
		return err
	}
	c.notifyDecision(scabbardstore.NotifyRequestForStart, epoch)

	// Coordinator votes for itself implicitly by virtue of proposing.
	c.current.votes[c.thisService] = true

	// A single-member circuit has no participants to wait on: the
	// coordinator's own vote already decides the epoch.
	if len(c.participants) == 0 {
		return c.tallyVotes()
	}

	c.notifyDecision(scabbardstore.NotifyCoordinatorRequestForVote, epoch)
	for _, svc := range c.participants {
		if err := c.sender.SendConsensus(svc, wire.ConsensusMessage{Kind: wire.MsgVoteRequest, Epoch: epoch, Value: value}); err != nil {
			c.log.Warn("failed to send vote request", "service", svc, "epoch", epoch, "err", err)
		}
	}
	return nil
}

// HandleConsensusMessage processes one inbound ConsensusMessage from
// fromService.
func (c *Consensus) HandleConsensusMessage(fromService string, msg wire.ConsensusMessage) error {
	switch msg.Kind {
	case wire.MsgVoteRequest:
		return c.handleVoteRequest(fromService, msg)
	case wire.MsgVoteResponse:
		return c.handleVoteResponse(fromService, msg)
	case wire.MsgCommit:
		return c.handleCommit(msg)
	case wire.MsgAbort:
		return c.handleAbort(msg)
	case wire.MsgDecisionRequest:
		return c.handleDecisionRequest(fromService, msg)
	default:
		return splintererror.New(splintererror.InvalidArgument, "scabbard: unknown ConsensusMessageKind %d", msg.Kind)
	}
}

func (c *Consensus) handleVoteRequest(coordinator string, msg wire.ConsensusMessage) error {
	var batch wire.Batch
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		return err
	}

	view := &treeView{tree: c.state, root: c.currentRoot()}
	changes, _, err := c.executor.Execute(batch, view)
	accept := err == nil
	var postRoot string
	if accept {
		postRoot, err = c.state.DryRunCommit(c.currentRoot(), changes)
		accept = err == nil
	}

	c.current = &epochState{epoch: msg.Epoch, batch: batch, postRoot: postRoot, decided: false, alarm: time.Now().Add(c.alarmTimeout)}

	if err := c.store.AddCommitEntry(c.thisService, wire.CommitEntry{Epoch: msg.Epoch, Value: msg.Value, Decision: wire.DecisionPending}); err != nil {
		return err
	}
	c.notifyDecision(scabbardstore.NotifyParticipantRequestForVote, msg.Epoch)

	return c.sender.SendConsensus(coordinator, wire.ConsensusMessage{Kind: wire.MsgVoteResponse, Epoch: msg.Epoch, Accept: accept})
}

func (c *Consensus) handleVoteResponse(fromService string, msg wire.ConsensusMessage) error {
	if c.current == nil || c.current.epoch != msg.Epoch {
		return splintererror.New(splintererror.NotFound, "scabbard: no in-flight epoch %d", msg.Epoch)
	}
	c.current.votes[fromService] = msg.Accept
	return c.tallyVotes()
}

// tallyVotes checks whether every participant (plus the coordinator itself)
// has voted on the current epoch and, if so, broadcasts the decision.
func (c *Consensus) tallyVotes() error {
	if len(c.current.votes) < len(c.participants)+1 {
		return nil
	}

	allAccept := true
	for _, accepted := range c.current.votes {
		if !accepted {
			allAccept = false
			break
		}
	}

	if allAccept {
		return c.broadcastDecision(wire.MsgCommit)
	}
	return c.broadcastDecision(wire.MsgAbort)
}

func (c *Consensus) broadcastDecision(kind wire.ConsensusMessageKind) error {
	epoch := c.current.epoch
	for _, svc := range c.participants {
		if err := c.sender.SendConsensus(svc, wire.ConsensusMessage{Kind: kind, Epoch: epoch}); err != nil {
			c.log.Warn("failed to broadcast decision", "service", svc, "epoch", epoch, "err", err)
		}
	}
	if kind == wire.MsgCommit {
		return c.applyCommit(epoch)
	}
	return c.applyAbort(epoch)
}

func (c *Consensus) handleCommit(msg wire.ConsensusMessage) error {
	return c.applyCommit(msg.Epoch)
}

func (c *Consensus) handleAbort(msg wire.ConsensusMessage) error {
	return c.applyAbort(msg.Epoch)
}

func (c *Consensus) applyCommit(epoch uint64) error {
	if c.current == nil || c.current.epoch != epoch {
		return splintererror.New(splintererror.NotFound, "scabbard: no in-flight epoch %d to commit", epoch)
	}
	prevRoot := c.currentRoot()
	view := &treeView{tree: c.state, root: prevRoot}
	changes, _, err := c.executor.Execute(c.current.batch, view)
	if err != nil {
		return err
	}
	newRoot, err := c.state.Commit(prevRoot, changes)
	if err != nil {
		return err
	}
	if err := c.store.UpdateCommitEntryDecision(c.thisService, epoch, wire.DecisionCommit, time.Now().Unix()); err != nil {
		return err
	}
	ctx, _, err := c.store.GetContext(c.thisService)
	if err != nil {
		return err
	}
	ctx.Epoch = epoch
	ctx.State = newRoot
	if err := c.store.PutContext(c.thisService, ctx); err != nil {
		return err
	}
	c.current.decided = true
	c.notifyDecision(scabbardstore.NotifyCommit, epoch)
	if prevRoot != newRoot {
		if _, err := c.state.Prune([]string{prevRoot}); err != nil {
			c.log.Warn("failed to prune superseded state root", "root", prevRoot, "err", err)
		}
	}
	return nil
}

func (c *Consensus) applyAbort(epoch uint64) error {
	if c.current == nil || c.current.epoch != epoch {
		return nil
	}
	if err := c.store.UpdateCommitEntryDecision(c.thisService, epoch, wire.DecisionAbort, time.Now().Unix()); err != nil {
		return err
	}
	c.current.decided = true
	c.notifyDecision(scabbardstore.NotifyAbort, epoch)
	return nil
}

// notifyDecision persists a durable SupervisorNotification recording that
// epoch reached a terminal decision, so a Supervisor can replay it after a
// crash even if every in-memory Consensus goroutine was lost (spec §4.8).
// Failure to persist the notification is logged, not propagated: the
// decision itself is already durable via UpdateCommitEntryDecision. Also
// used for the non-terminal RequestForStart/RequestForVote notifications —
// every phase of an epoch's lifecycle leaves a crash-recoverable trail a
// Supervisor can replay, not just its outcome.
func (c *Consensus) notifyDecision(kind scabbardstore.NotificationKind, epoch uint64) {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, epoch)
	if _, err := c.store.AddNotification(c.thisService, scabbardstore.SupervisorNotification{Kind: kind, Value: value}); err != nil {
		c.log.Warn("failed to persist supervisor notification", "epoch", epoch, "err", err)
	}
}

func (c *Consensus) handleDecisionRequest(fromService string, msg wire.ConsensusMessage) error {
	entries, err := c.store.ListCommitEntries(c.thisService)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Epoch == msg.Epoch {
			kind := wire.MsgCommit
			if e.Decision == wire.DecisionAbort {
				kind = wire.MsgAbort
			}
			return c.sender.SendConsensus(fromService, wire.ConsensusMessage{Kind: kind, Epoch: msg.Epoch})
		}
	}
	return splintererror.New(splintererror.NotFound, "scabbard: no record of epoch %d", msg.Epoch)
}

// CheckAlarm aborts the in-flight epoch if its deadline has passed without a
// terminal decision, per spec §4.6's alarm discipline. The supervisor calls
// it on each tick of its own loop.
func (c *Consensus) CheckAlarm(now time.Time) error {
	if c.current == nil || c.current.decided {
		return nil
	}
	if now.Before(c.current.alarm) {
		return nil
	}
	c.log.Warn("epoch alarm expired, aborting", "epoch", c.current.epoch)
	return c.broadcastDecision(wire.MsgAbort)
}

func (c *Consensus) currentRoot() string {
	ctx, ok, err := c.store.GetContext(c.thisService)
	if err != nil || !ok || ctx.State == "" {
		return c.state.EmptyRoot()
	}
	return ctx.State
}

// CurrentRoot exposes the latest committed state root for read-only callers
// (the connector layer's GetStateAt).
func (c *Consensus) CurrentRoot() string {
	return c.currentRoot()
}

// treeView adapts StateTree to the executor's narrow StateView interface.
type treeView struct {
	tree *StateTree
	root string
}

func (v *treeView) Get(address string) ([]byte, bool, error) {
	return v.tree.Get(v.root, address)
}
