package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Client calls the adhand control interface.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// NewClient opens a private connection to bus and checks that adhand is
// there.
func NewClient(bus string) (*Client, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	switch bus {
	case "", BusSession:
		conn, err = dbus.ConnectSessionBus()
	case BusSystem:
		conn, err = dbus.ConnectSystemBus()
	default:
		return nil, fmt.Errorf("unknown bus %q (want %q or %q)", bus, BusSession, BusSystem)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s bus: %w", bus, err)
	}

	var owned bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, BusName).Store(&owned); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to query bus name: %w", err)
	}
	if !owned {
		conn.Close()
		return nil, ErrDaemonNotRunning
	}

	return &Client{conn: conn, obj: conn.Object(BusName, Path)}, nil
}

// Status returns the daemon status JSON.
func (c *Client) Status(ctx context.Context) ([]byte, error) {
	var out string
	if err := c.obj.CallWithContext(ctx, Interface+".Status", 0).Store(&out); err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Play asks the daemon to play asset and returns the request id.
func (c *Client) Play(ctx context.Context, asset, priority string, volume float64) (string, error) {
	var id string
	err := c.obj.CallWithContext(ctx, Interface+".Play", 0, asset, priority, volume).Store(&id)
	return id, err
}

// SetQuiet switches quiet mode in the daemon.
func (c *Client) SetQuiet(ctx context.Context, enabled bool) error {
	return c.obj.CallWithContext(ctx, Interface+".SetQuiet", 0, enabled).Err
}

// Reset clears the daemon's audio channel.
func (c *Client) Reset(ctx context.Context) error {
	return c.obj.CallWithContext(ctx, Interface+".Reset", 0).Err
}

// Subscribe delivers announcement signals until ctx is done.
func (c *Client) Subscribe(ctx context.Context) (<-chan AnnouncementSignal, error) {
	if err := c.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(Path),
		dbus.WithMatchInterface(Interface),
	); err != nil {
		return nil, fmt.Errorf("failed to add match rule: %w", err)
	}

	raw := make(chan *dbus.Signal, 16)
	c.conn.Signal(raw)

	out := make(chan AnnouncementSignal, 16)
	go func() {
		defer close(out)
		defer c.conn.RemoveSignal(raw)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-raw:
				if !ok {
					return
				}
				parsed, err := ParseSignal(sig)
				if err != nil {
					continue
				}
				select {
				case out <- parsed:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the client's connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
