package websocket

import (
	"context"
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/aukilabs/hagall-common/messages/hagallpb"
	hwebsocket "github.com/aukilabs/hagall-common/websocket"
	"github.com/aukilabs/hagall-spatial/models"
	"github.com/aukilabs/hagall-spatial/modules"
	"golang.org/x/net/websocket"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// SpaceIDPathValue is the name of the request path wildcard that holds the id
// of the space a client connects to.
const SpaceIDPathValue = "id"

// RealtimeHandler represents a service that connects a client to a space and
// relays its messages to the space modules.
type RealtimeHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains all the server spaces.
	Spaces *models.SpaceStore

	// The modules that expand the space features.
	Modules []modules.Module

	conn         *websocket.Conn
	currentSpace *models.Space
	clientID     string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) error {
	req := conn.Request()
	h.clientID = req.Header.Get(httpcmn.HeaderPosemeshClientID)
	h.conn = conn

	rawID := req.PathValue(SpaceIDPathValue)
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		return errors.New("invalid space id").
			WithType(models.ErrTypeSpaceNotFound).
			WithTag("space_id", rawID).
			Wrap(err)
	}

	space, ok := h.Spaces.Get(uint32(id))
	if !ok {
		return errors.New("space not found").
			WithType(models.ErrTypeSpaceNotFound).
			WithTag("space_id", id)
	}

	h.currentSpace = space
	for _, m := range h.Modules {
		m.Init(space)
	}
	return nil
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond hwebsocket.ResponseSender, msg hwebsocket.Msg) error {
	var req hagallpb.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(&hagallpb.Response{
		Type:      hagallpb.MsgType_MSG_TYPE_PING_RESPONSE,
		Timestamp: timestamppb.Now(),
		RequestId: req.RequestId,
	})
	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	if h.currentSpace == nil {
		return
	}

	for _, m := range h.Modules {
		m.HandleDisconnect()
	}
	h.currentSpace = nil
}

func (h *RealtimeHandler) HandleWithModule(ctx context.Context, m modules.Module, respond hwebsocket.ResponseSender, msg hwebsocket.Msg) error {
	if h.currentSpace == nil {
		return nil
	}

	err := m.HandleMsg(ctx, respond, msg)
	if errors.IsType(err, hwebsocket.ErrTypeMsgSkip) {
		return nil
	}
	if err != nil {
		return errors.New("handling message with module failed").
			WithTag("module", m.Name()).
			Wrap(err)
	}
	return nil
}

func (h *RealtimeHandler) Receiver() hwebsocket.Receiver {
	return func() (hwebsocket.Msg, int, error) {
		return hwebsocket.Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() hwebsocket.Sender {
	return func(msg hwebsocket.Msg) (int, error) {
		return hwebsocket.Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetModules() []modules.Module {
	return h.Modules
}

func (h *RealtimeHandler) CurrentSpace() *models.Space {
	return h.currentSpace
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}
