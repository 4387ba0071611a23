package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hagall-common/messages/hagallpb"
	hwebsocket "github.com/aukilabs/hagall-common/websocket"
	"github.com/aukilabs/hagall-spatial/models"
	"github.com/aukilabs/hagall-spatial/modules"
	"golang.org/x/net/websocket"
)

const outboxSize = 512

// Handler handles the messages of a client connected to a space.
type Handler interface {
	// Attaches the client to a space. Returning an error disconnects the
	// client.
	HandleConnect(conn *websocket.Conn) error

	HandlePing(ctx context.Context, respond hwebsocket.ResponseSender, msg hwebsocket.Msg) error

	// Called once when the client leaves, with the reason when there is one.
	HandleDisconnect(error)

	HandleWithModule(ctx context.Context, module modules.Module, respond hwebsocket.ResponseSender, msg hwebsocket.Msg) error

	Receiver() hwebsocket.Receiver
	Sender() hwebsocket.Sender

	// Releases the resources held by the handler.
	Close()

	// The time a client can stay silent before being disconnected.
	IdleTimeout() time.Duration

	GetModules() []modules.Module

	// The space the client is attached to, nil before a successful
	// HandleConnect and after HandleDisconnect.
	CurrentSpace() *models.Space

	GetClientID() string
}

// Handle serves the client connected with conn until it disconnects or ctx is
// canceled.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	c := spaceClient{
		conn:    conn,
		handler: h,
	}
	c.serve(ctx)
}

// spaceClient pumps the messages of one connection. Incoming messages go
// through a scheduler and are handled one at a time, outgoing ones are
// queued in outbox.
type spaceClient struct {
	conn    *websocket.Conn
	handler Handler

	outbox    chan hwebsocket.Msg
	leave     chan error
	scheduler messageScheduler
}

type messageScheduler interface {
	hwebsocket.Dispatcher
	hwebsocket.Consumer
	Close()
}

func (c *spaceClient) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.handler.HandleConnect(c.conn); err != nil {
		c.close(errors.New("connecting client failed").Wrap(err))
		return
	}

	c.leave = make(chan error, 8)
	c.outbox = make(chan hwebsocket.Msg, outboxSize)
	c.scheduler = hwebsocket.NewScheduler()
	defer c.scheduler.Close()
	defer drain(c.leave)

	var wg sync.WaitGroup
	c.goPump(&wg, func() { c.writePump(ctx, c.handler.Sender()) })
	c.goPump(&wg, func() { c.readPump(ctx, c.handler.Receiver()) })

	timeout := c.handler.IdleTimeout()
	idle := time.NewTimer(timeout)
	defer idle.Stop()

	respond := clientResponder{client: c}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			c.close(ctx.Err())

		case <-idle.C:
			c.disconnect(errors.New("idle connection").WithTag("duration", timeout))

		case msg := <-c.scheduler.Messages():
			idle.Stop()
			idle.Reset(timeout)

			if err := c.route(ctx, respond, msg); err != nil {
				c.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-c.leave:
			c.close(err)
			cancel()
		}
	}

	wg.Wait()
}

func (c *spaceClient) goPump(wg *sync.WaitGroup, pump func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		pump()
	}()
}

func (c *spaceClient) writePump(ctx context.Context, send hwebsocket.Sender) {
	defer drain(c.outbox)

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-c.outbox:
			if _, err := send(msg); err != nil {
				c.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (c *spaceClient) readPump(ctx context.Context, receive hwebsocket.Receiver) {
	for ctx.Err() == nil {
		msg, _, err := receive()
		if err != nil {
			c.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		if err := c.scheduler.Dispatch(ctx, msg); err != nil {
			c.disconnect(errors.New("dispatching message failed").Wrap(err))
			return
		}
	}
}

// route answers pings itself and hands every other message to the modules of
// the space.
func (c *spaceClient) route(ctx context.Context, respond hwebsocket.ResponseSender, msg hwebsocket.Msg) error {
	if msg.Type == hagallpb.MsgType_MSG_TYPE_PING_REQUEST {
		return c.handler.HandlePing(ctx, respond, msg)
	}

	if c.handler.CurrentSpace() == nil {
		return nil
	}

	for _, m := range c.handler.GetModules() {
		if err := c.handler.HandleWithModule(ctx, m, respond, msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *spaceClient) disconnect(err error) {
	c.leave <- err
}

func (c *spaceClient) close(err error) {
	c.conn.Close()
	c.handler.HandleDisconnect(err)
}

func drain[T any](ch chan T) {
	for len(ch) != 0 {
		<-ch
	}
}

type clientResponder struct {
	client *spaceClient
}

func (r clientResponder) Send(protoMsg hwebsocket.ProtoMsg) {
	msg, err := hwebsocket.MsgFromProto(protoMsg)
	if err != nil {
		logs.WithClientID(r.client.handler.GetClientID()).
			WithTag("message", protoMsg).
			Debug(err)
		return
	}
	r.SendMsg(msg)
}

func (r clientResponder) SendMsg(msg hwebsocket.Msg) {
	r.client.outbox <- msg
}
