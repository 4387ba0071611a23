package dagaz

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hagall-common/messages/dagazpb"
	hwebsocket "github.com/aukilabs/hagall-common/websocket"
	"github.com/aukilabs/hagall-spatial/models"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Module is the module that collects the horizontal planes sampled by the
// clients of a space and answers ground plane lookups.
type Module struct {
	currentSpace *models.Space
	state        *State
}

func (m *Module) Name() string {
	return "dagaz"
}

func (m *Module) Init(s *models.Space) {
	m.currentSpace = s

	state := s.LoadOrInitModuleState(m.Name(), func() any {
		return &State{
			SpatialPartition: NewQuadTreePartition(s.Bounds, s.NodeCapacity()),
		}
	})
	m.state = state.(*State)
}

func (m *Module) HandleMsg(ctx context.Context, respond hwebsocket.ResponseSender, msg hwebsocket.Msg) error {
	switch dagazpb.MsgType(msg.Type.Number()) {
	case dagazpb.MsgType_MSG_TYPE_DAGAZ_QUAD_SAMPLE:
		return m.HandleDagazQuadSample(ctx, msg)

	case dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_GROUND_PLANE_REQUEST:
		return m.HandleDagazGetGroundPlane(ctx, respond, msg)

	case dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_REGION_REQUEST:
		return m.HandleDagazGetRegion(ctx, respond, msg)

	case dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_DEBUG_INFO_REQUEST:
		return m.HandleDagazGetDebugInfo(ctx, respond, msg)

	default:
		return hwebsocket.ErrModuleMsgSkip
	}
}

func (m *Module) HandleDisconnect() {
	m.currentSpace = nil
	m.state = nil
}

func (m *Module) HandleDagazQuadSample(ctx context.Context, msg hwebsocket.Msg) error {
	var sample dagazpb.DagazQuadSample
	if err := msg.DataTo(&sample); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	for _, q := range sample.Samples {
		if q == nil {
			continue
		}
		m.state.SpatialPartition.InsertQuad(NewQuadFromProtobuf(q))
	}

	logs.WithTag("space_id", m.currentSpace.ID).
		WithTag("samples", len(sample.Samples)).
		Debug("quad samples inserted")
	return nil
}

func (m *Module) HandleDagazGetGroundPlane(ctx context.Context, respond hwebsocket.ResponseSender, msg hwebsocket.Msg) error {
	var req dagazpb.DagazGetGroundPlaneRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	ground, _ := m.state.SpatialPartition.IntersectQuad(NewRayFromProtobuf(req.Ray))
	if ground == nil {
		// A zero quad tells the client that no ground was found.
		ground = &Quad{}
	}

	respond.Send(&dagazpb.DagazGetGroundPlaneResponse{
		Type:      dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_GROUND_PLANE_RESPONSE,
		Timestamp: timestamppb.Now(),
		RequestId: req.RequestId,
		Ground:    ground.ToProtobuf(),
	})
	return nil
}

func (m *Module) HandleDagazGetRegion(ctx context.Context, respond hwebsocket.ResponseSender, msg hwebsocket.Msg) error {
	var req dagazpb.DagazGetRegionRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	quads := m.state.SpatialPartition.GetRegion(
		NewVector3fFromProtobuf(req.Min),
		NewVector3fFromProtobuf(req.Max),
	)

	protoQuads := make([]*dagazpb.Quad, len(quads))
	for i, q := range quads {
		protoQuads[i] = q.ToProtobuf()
	}

	respond.Send(&dagazpb.DagazGetRegionResponse{
		Type:      dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_REGION_RESPONSE,
		Timestamp: timestamppb.Now(),
		RequestId: req.RequestId,
		Quads:     protoQuads,
	})
	return nil
}

// HandleDagazGetDebugInfo reports the partition state. The response fields
// named after grids carry the quadtree node capacity, depth and leaf count.
func (m *Module) HandleDagazGetDebugInfo(ctx context.Context, respond hwebsocket.ResponseSender, msg hwebsocket.Msg) error {
	var req dagazpb.DagazGetDebugInfoRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if err := m.checkJoined(msg); err != nil {
		return err
	}

	info := m.state.SpatialPartition.GetDebugInfo()

	respond.Send(&dagazpb.DagazGetDebugInfoResponse{
		Type:           dagazpb.MsgType_MSG_TYPE_DAGAZ_GET_DEBUG_INFO_RESPONSE,
		Timestamp:      timestamppb.Now(),
		RequestId:      req.RequestId,
		GridResolution: info.Capacity,
		GridRowCount:   info.Depth,
		GridColCount:   info.LeafCount,
		GridPlaneCount: info.PlaneCount,
		GridMergeCount: info.MergeCount,
		GridMinPoint:   info.MinPoint.ToProtobuf(),
		GridMaxPoint:   info.MaxPoint.ToProtobuf(),
		Occupancy:      info.Occupancy,
	})
	return nil
}

func (m *Module) checkJoined(msg hwebsocket.Msg) error {
	if m.currentSpace == nil || m.state == nil {
		return errors.New("space not joined").
			WithType(hwebsocket.ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.TypeString())
	}
	return nil
}
