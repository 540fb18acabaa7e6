// Package audio owns the kiosk's single audio output channel.
//
// The Manager arbitrates playback requests by priority: a stronger request
// preempts a weaker one, anything else is queued or dropped according to the
// configured policy. It also keeps the output device awake with a silent loop,
// a periodic monitor and a heartbeat probe.
//
// Devices are pluggable. BeepDevice decodes WAV, OGG and MP3 files with the
// beep library and plays them on the system speaker; NullDevice is used on
// headless hosts; FakeDevice is a scriptable device for tests.
package audio
