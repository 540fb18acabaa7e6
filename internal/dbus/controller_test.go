package dbus_test

import (
	"github.com/jmylchreest/adhan/internal/daemon"
	"github.com/jmylchreest/adhan/internal/dbus"
)

var _ dbus.Controller = (*daemon.Kiosk)(nil)
