package control

import (
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// validate checks a caller-supplied request against its family and the
// calling session. Every failure is StatusInvalidParameter; the reasons
// differ so they can be told apart in logs and tests.
//
// On success req.Command is set.
func (c *Controller) validate(req *Request) error {
	fam := req.Family
	cmd, ok := fam.Command(req.Msg.Genl.Cmd)
	if !ok {
		return statusErrorf(StatusInvalidParameter, "%s has no command %d", fam.Name, req.Msg.Genl.Cmd)
	}
	req.Command = cmd

	if req.DevOp&cmd.DevOps == 0 {
		return statusErrorf(StatusInvalidParameter, "%s %s does not accept %s", fam.Name, cmd.Name, req.DevOp)
	}

	if fam.Version > req.Msg.Genl.Version {
		return statusErrorf(StatusInvalidParameter, "%s version %d is older than required %d",
			fam.Name, req.Msg.Genl.Version, fam.Version)
	}

	if cmd.ValidateDp {
		// Index takes the control lock.
		if idx := c.sw.Datapath().Index(); req.Msg.DpIfIndex != idx {
			return statusErrorf(StatusInvalidParameter, "no such datapath %d (active %d)", req.Msg.DpIfIndex, idx)
		}
	}

	if !isGetPID(fam, cmd) && req.Msg.PID != req.Session.PID() {
		return statusErrorf(StatusInvalidParameter, "pid %d does not own session %d", req.Msg.PID, req.Session.PID())
	}
	return nil
}

// isGetPID reports whether cmd is the one command a caller may issue
// before it knows its own pid.
func isGetPID(fam *Family, cmd *Command) bool {
	return fam.ID == ovs.FamilyControl && cmd.Code == ovs.CtrlCmdGetPID
}
