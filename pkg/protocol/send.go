package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/doorbell"
	"github.com/gobeyondidentity/ipclink/pkg/layout"
	"github.com/gobeyondidentity/ipclink/pkg/message"
	"github.com/gobeyondidentity/ipclink/pkg/response"
	"github.com/gobeyondidentity/ipclink/pkg/transport"
)

// SendDeferred queues args in the message ring and rings the HPDA doorbell.
// It never blocks on the CP. If c is non-nil it is resolved with the CP's
// completion status, or with StatusLinkBroken if the link breaks first; a
// nil c makes the request fire-and-forget. It returns the ring slot used.
func (p *Protocol) SendDeferred(args message.Args, c *response.Completion) (uint32, error) {
	if p.broken.Load() {
		return 0, ErrLinkBroken
	}

	p.sendMu.Lock()
	if p.closed {
		p.sendMu.Unlock()
		return 0, ErrClosed
	}
	// markBroken takes sendMu, so a break either lands before this check or
	// after the completion is registered and gets resolved by it.
	if p.broken.Load() {
		p.sendMu.Unlock()
		return 0, ErrLinkBroken
	}
	slot, err := p.ring.Reserve()
	if err != nil {
		p.sendMu.Unlock()
		return 0, err
	}
	if err := p.table.Register(slot, c); err != nil {
		p.ring.Cancel(slot)
		p.sendMu.Unlock()
		p.markBroken("slot busy")
		return 0, err
	}
	if err := p.ring.Publish(slot, args); err != nil {
		p.table.Expire(slot, c, message.StatusInvalid)
		p.ring.Cancel(slot)
		p.sendMu.Unlock()
		return 0, fmt.Errorf("publish %s: %w", args.Type(), err)
	}
	p.sendMu.Unlock()

	p.logger.Debug("message queued", "slot", slot, "type", args.Type())
	p.signaler.Update(doorbell.IdentMessageRing, false)
	return slot, nil
}

// SendBlocking sends args and waits for the CP to complete it. The deadline
// is RunTimeout while the CP is in the RUN stage and BootTimeout otherwise;
// time spent waiting for a free ring slot counts against it.
//
// On timeout the request is failed with StatusLinkBroken, the whole link is
// marked broken and ErrTimeout is returned. A completion with a status other
// than success returns that status together with ErrRejected.
func (p *Protocol) SendBlocking(args message.Args) (message.Status, error) {
	timeout := p.stageTimeout()
	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	c := response.NewCompletion()
	var slot uint32
	err := transport.Retry(ctx, p.retry, func() error {
		s, err := p.SendDeferred(args, c)
		slot = s
		return err
	})
	if err != nil {
		return message.StatusInvalid, err
	}

	status, ok := c.Wait(time.Until(deadline))
	if !ok {
		if p.table.Expire(slot, c, message.StatusLinkBroken) {
			p.logger.Error("message timeout", "slot", slot, "type", args.Type(), "timeout", timeout)
			p.emit(audit.NewMessageTimeout(p.instance, slot, args.Type().String(), timeout))
			p.markBroken("message timeout")
			return message.StatusLinkBroken, fmt.Errorf("%w: %s in slot %d after %v", ErrTimeout, args.Type(), slot, timeout)
		}
		// The sweep resolved it between the timer firing and the expiry.
		status = c.Status()
	}

	switch status {
	case message.StatusSuccess:
		return status, nil
	case message.StatusLinkBroken:
		if p.Closed() {
			return status, ErrClosed
		}
		return status, ErrLinkBroken
	default:
		return status, fmt.Errorf("%w: %s completed with %s", ErrRejected, args.Type(), status)
	}
}

func (p *Protocol) stageTimeout() time.Duration {
	if p.Closed() {
		return p.cfg.BootTimeout
	}
	if p.region.ExecStage() == layout.StageRun {
		return p.cfg.RunTimeout
	}
	return p.cfg.BootTimeout
}

// sweep hands every slot the CP acknowledged since the last sweep to the
// response table and frees it in the ring.
func (p *Protocol) sweep() {
	p.sweepMu.Lock()
	defer p.sweepMu.Unlock()

	// Entry statuses are read only after the tail load.
	tail := p.region.MsgTail()
	if tail >= layout.MsgEntries {
		p.logger.Error("message tail out of range", "tail", tail)
		return
	}
	for _, slot := range p.ring.DrainAcked(p.lastTail, tail) {
		status := message.StatusOf(p.region.Entry(slot))
		if !p.table.Resolve(slot, status) && status != message.StatusSuccess {
			p.logger.Warn("unclaimed completion", "slot", slot, "status", status)
		}
		p.ring.Release(slot)
	}
	p.lastTail = tail
}
