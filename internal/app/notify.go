package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	logx "postar/pkg/logx"
)

const (
	notifyReady    = daemon.SdNotifyReady
	notifyStopping = daemon.SdNotifyStopping
)

func sdNotify(state string) (bool, error) { return daemon.SdNotify(false, state) }

// notify tells systemd about lifecycle changes. Outside a Type=notify unit it
// does nothing.
func (a *App) notify(state string) {
	if a.o.notifier == nil {
		return
	}
	sent, err := a.o.notifier(state)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("sd_notify sent", logx.String("state", state))
	}
}
