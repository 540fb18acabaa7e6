// Package dbus exports the adhand control interface (io.github.jmylchreest.Adhan)
// and provides the client the adhan CLI uses to reach it. Announcements are
// broadcast as AnnouncementStarted and AnnouncementFinished signals.
package dbus
