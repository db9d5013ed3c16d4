package protocol

import (
	"fmt"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/layout"
)

// HandleIRQ is the interrupt entry point. The message vector runs the
// completion sweep, the device-info vector re-reads device info, and any
// other vector goes to the pipe handler. When both vectors are equal a single
// interrupt does both.
func (p *Protocol) HandleIRQ(vector int) {
	if p.Closed() {
		return
	}
	handled := false
	if vector == int(p.cfg.MsgVector) {
		p.sweep()
		handled = true
	}
	if vector == int(p.cfg.DeviceVector) {
		p.handleDeviceInfo()
		handled = true
	}
	if !handled {
		if p.pipes == nil {
			p.logger.Debug("unhandled irq", "vector", vector)
			return
		}
		p.pipes.HandleIRQ(vector)
	}
}

func (p *Protocol) handleDeviceInfo() {
	p.devMu.Lock()
	stage := p.region.ExecStage()
	prev := p.lastStage
	p.lastStage = stage
	p.devMu.Unlock()

	if stage != prev {
		p.logger.Info("execution stage changed", "from", prev, "to", stage)
		p.emit(audit.NewStageChange(p.instance, prev.String(), stage.String()))
	}

	// Sleep notifications are only meaningful once IPC is running.
	if p.region.IPCStatus() != layout.IPCRunning {
		return
	}
	p.HandleDeviceSleepNotification()
}

func checkPipe(pipe int) error {
	if pipe < 0 || pipe >= layout.MaxPipes {
		return fmt.Errorf("%w: %d", ErrInvalidPipe, pipe)
	}
	return nil
}

// PipeHead returns the AP-owned producer index of a data pipe.
func (p *Protocol) PipeHead(pipe int) (uint32, error) {
	if err := checkPipe(pipe); err != nil {
		return 0, err
	}
	return p.region.PipeHead(pipe), nil
}

// SetPipeHead publishes a new producer index for a data pipe.
func (p *Protocol) SetPipeHead(pipe int, v uint32) error {
	if err := checkPipe(pipe); err != nil {
		return err
	}
	p.region.SetPipeHead(pipe, v)
	return nil
}

// PipeTail returns the CP-owned consumer index of a data pipe.
func (p *Protocol) PipeTail(pipe int) (uint32, error) {
	if err := checkPipe(pipe); err != nil {
		return 0, err
	}
	return p.region.PipeTail(pipe), nil
}

// ResetPipe zeroes both indices of a data pipe before it is reopened.
func (p *Protocol) ResetPipe(pipe int) error {
	if err := checkPipe(pipe); err != nil {
		return err
	}
	p.region.SetPipeHead(pipe, 0)
	p.region.SetPipeTail(pipe, 0)
	return nil
}
