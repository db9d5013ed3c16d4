package protocol

import (
	"errors"

	"github.com/gobeyondidentity/ipclink/pkg/pm"
	"github.com/gobeyondidentity/ipclink/pkg/response"
	"github.com/gobeyondidentity/ipclink/pkg/ring"
	"github.com/gobeyondidentity/ipclink/pkg/transport"
)

var (
	// ErrRingFull is returned when every usable ring slot is outstanding. It is transient.
	ErrRingFull = ring.ErrRingFull

	// ErrSlotBusy means a ring slot still had an unresolved completion. The
	// request is aborted and the link is marked broken.
	ErrSlotBusy = response.ErrSlotBusy

	// ErrTimeout is returned by SendBlocking when the CP did not acknowledge
	// in time. The link is broken afterwards.
	ErrTimeout = errors.New("protocol: request timed out")

	// ErrLinkBroken is returned by every send once the link is broken.
	ErrLinkBroken = errors.New("protocol: link broken")

	// ErrClosed is returned after Deinit.
	ErrClosed = errors.New("protocol: closed")

	// ErrRejected is returned when the CP completed a request with a status
	// other than success.
	ErrRejected = errors.New("protocol: request rejected by device")

	// ErrUnrecognizedNotification is reported for sleep notifications with no
	// transition from the current device state.
	ErrUnrecognizedNotification = pm.ErrUnrecognizedNotification

	// ErrAllocation is returned by Init when the shared region cannot be allocated.
	ErrAllocation = transport.ErrAllocation

	// ErrInvalidPipe is returned for pipe numbers outside [0, layout.MaxPipes).
	ErrInvalidPipe = errors.New("protocol: invalid pipe")
)
