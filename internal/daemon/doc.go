// Package daemon runs adhand: it resolves the day's prayer times from the
// timetable, fires announcements through the audio channel on a one second
// scheduler, applies quiet mode, and reloads the timetable, shared state and
// config files when they change.
package daemon
