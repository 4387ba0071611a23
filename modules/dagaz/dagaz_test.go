package dagaz

import (
	"context"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/hagall-common/messages/dagazpb"
	"github.com/aukilabs/hagall-common/messages/hagallpb"
	hwebsocket "github.com/aukilabs/hagall-common/websocket"
	"github.com/aukilabs/hagall-spatial/models"
	"github.com/aukilabs/hagall-spatial/quadtree"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type testResponseSender struct {
	msgs []hwebsocket.ProtoMsg
}

func (s *testResponseSender) Send(msg hwebsocket.ProtoMsg) {
	s.msgs = append(s.msgs, msg)
}

func (s *testResponseSender) SendMsg(msg hwebsocket.Msg) {
}

func newTestMsg(t *testing.T, protoMsg hwebsocket.ProtoMsg) hwebsocket.Msg {
	msg, err := hwebsocket.MsgFromProto(protoMsg)
	require.NoError(t, err)
	return msg
}

func newTestSpace() *models.Space {
	return models.NewSpace(1, models.SpaceOptions{
		Bounds:       quadtree.NewRect(-10, -10, 20, 20),
		NodeCapacity: 2,
	})
}

func TestModuleInit(t *testing.T) {
	space := newTestSpace()

	var a, b Module
	a.Init(space)
	b.Init(space)
	require.Equal(t, "dagaz", a.Name())
	require.Same(t, a.state, b.state)

	state, ok := space.ModuleState(a.Name())
	require.True(t, ok)
	require.Same(t, a.state, state)
}

func TestModuleHandleMsg(t *testing.T) {
	ctx := context.Background()
	space := newTestSpace()

	var sampler, reader Module
	sampler.Init(space)
	reader.Init(space)

	quad := NewQuad(NewVector3f(0, 0, 0), NewVector3f(1, 0, 1))

	t.Run("quad sample", func(t *testing.T) {
		var respond testResponseSender
		err := sampler.HandleMsg(ctx, &respond, newTestMsg(t, &dagazpb.DagazQuadSample{
			Type:      dagazpb.MsgType_MSG_TYPE_DAGAZ_QUAD_SAMPLE,
			Timestamp: timestamppb.Now(),
			Samples:   []*dagazpb.Quad{quad.ToProtobuf()},
		}))
		require.NoError(t, err)
		require.Empty(t, respond.msgs)
	})

	t.Run("get ground plane", func(t *testing.T) {
		var respond testResponseSender
		from := NewVector3f(0, 1, 0)
		to := NewVector3f(0, -1, 0)

		err := reader.HandleMsg(ctx, &respond, newTestMsg(t, &dagazpb.DagazGetGroundPlaneRequest{
			Type:      dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_GROUND_PLANE_REQUEST,
			Timestamp: timestamppb.Now(),
			RequestId: 2,
			Ray:       &dagazpb.Ray{From: from.ToProtobuf(), To: to.ToProtobuf()},
		}))
		require.NoError(t, err)
		require.Len(t, respond.msgs, 1)

		res := respond.msgs[0].(*dagazpb.DagazGetGroundPlaneResponse)
		require.Equal(t, uint32(2), res.RequestId)
		require.Equal(t, quad, NewQuadFromProtobuf(res.Ground))
	})

	t.Run("get ground plane without hit", func(t *testing.T) {
		var respond testResponseSender
		from := NewVector3f(5, 1, 5)
		to := NewVector3f(5, -1, 5)

		err := reader.HandleMsg(ctx, &respond, newTestMsg(t, &dagazpb.DagazGetGroundPlaneRequest{
			Type:      dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_GROUND_PLANE_REQUEST,
			Timestamp: timestamppb.Now(),
			RequestId: 3,
			Ray:       &dagazpb.Ray{From: from.ToProtobuf(), To: to.ToProtobuf()},
		}))
		require.NoError(t, err)
		require.Len(t, respond.msgs, 1)

		res := respond.msgs[0].(*dagazpb.DagazGetGroundPlaneResponse)
		require.Equal(t, Vector3f{}, NewVector3fFromProtobuf(res.Ground.Center))
		require.Equal(t, Vector3f{}, NewVector3fFromProtobuf(res.Ground.Extents))
	})

	t.Run("get region", func(t *testing.T) {
		var respond testResponseSender
		min := NewVector3f(-10, -10, -10)
		max := NewVector3f(10, 10, 10)

		err := reader.HandleMsg(ctx, &respond, newTestMsg(t, &dagazpb.DagazGetRegionRequest{
			Type:      dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_REGION_REQUEST,
			Timestamp: timestamppb.Now(),
			RequestId: 4,
			Min:       min.ToProtobuf(),
			Max:       max.ToProtobuf(),
		}))
		require.NoError(t, err)
		require.Len(t, respond.msgs, 1)

		res := respond.msgs[0].(*dagazpb.DagazGetRegionResponse)
		require.Equal(t, uint32(4), res.RequestId)
		require.Len(t, res.Quads, 1)
		require.Equal(t, quad, NewQuadFromProtobuf(res.Quads[0]))
	})

	t.Run("get debug info", func(t *testing.T) {
		var respond testResponseSender

		err := reader.HandleMsg(ctx, &respond, newTestMsg(t, &dagazpb.DagazGetDebugInfoRequest{
			Type:      dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_DEBUG_INFO_REQUEST,
			Timestamp: timestamppb.Now(),
			RequestId: 5,
		}))
		require.NoError(t, err)
		require.Len(t, respond.msgs, 1)

		res := respond.msgs[0].(*dagazpb.DagazGetDebugInfoResponse)
		require.Equal(t, uint32(5), res.RequestId)
		require.Equal(t, uint32(2), res.GridResolution)
		require.Equal(t, uint32(1), res.GridPlaneCount)
		require.Equal(t, []uint32{1}, res.Occupancy)
	})

	t.Run("unhandled message is skipped", func(t *testing.T) {
		var respond testResponseSender

		err := reader.HandleMsg(ctx, &respond, newTestMsg(t, &hagallpb.Request{
			Type:      hagallpb.MsgType_MSG_TYPE_PING_REQUEST,
			Timestamp: timestamppb.Now(),
			RequestId: 6,
		}))
		require.True(t, errors.IsType(err, hwebsocket.ErrTypeMsgSkip))
	})
}

func TestModuleNotJoined(t *testing.T) {
	var m Module
	var respond testResponseSender

	err := m.HandleMsg(context.Background(), &respond, newTestMsg(t, &dagazpb.DagazGetRegionRequest{
		Type:      dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_REGION_REQUEST,
		Timestamp: timestamppb.Now(),
		RequestId: 1,
	}))
	require.Error(t, err)
	require.True(t, errors.IsType(err, hwebsocket.ErrTypeSessionNotJoined))
	require.Empty(t, respond.msgs)
}

func TestModuleHandleDisconnect(t *testing.T) {
	var m Module
	m.Init(newTestSpace())
	m.HandleDisconnect()

	err := m.HandleMsg(context.Background(), &testResponseSender{}, newTestMsg(t, &dagazpb.DagazQuadSample{
		Type:      dagazpb.MsgType_MSG_TYPE_DAGAZ_QUAD_SAMPLE,
		Timestamp: timestamppb.Now(),
	}))
	require.True(t, errors.IsType(err, hwebsocket.ErrTypeSessionNotJoined))
}
