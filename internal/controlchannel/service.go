// SPDX-License-Identifier:Apache-2.0

package controlchannel

import (
	"context"
	"errors"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/openperouter/bgpspeaker/internal/conversion"
	"github.com/openperouter/bgpspeaker/internal/speaker"
	"github.com/openperouter/bgpspeaker/internal/status"
)

var ErrSpeakerNotRunning = errors.New("speaker is not running")

type Empty struct{}

type NeighborsReply struct {
	Neighbors []conversion.NeighborParams `json:"neighbors"`
}

type VRFsReply struct {
	VRFs []conversion.VRFParams `json:"vrfs"`
}

type RoutesReply struct {
	Routes []speaker.Route `json:"routes"`
}

// SpeakerService is registered as "Speaker" on the control channel.
type SpeakerService struct {
	ctx    context.Context
	engine EngineProvider
	status status.StatusReader
}

func (s *SpeakerService) current() (speaker.Engine, error) {
	engine := s.engine()
	if engine == nil {
		return nil, ErrSpeakerNotRunning
	}
	return engine, nil
}

func (s *SpeakerService) Neighbors(_ *Empty, reply *NeighborsReply) error {
	engine, err := s.current()
	if err != nil {
		return err
	}
	neighbors := engine.Neighbors()
	for i := range neighbors {
		// the session password never leaves the speaker
		neighbors[i].Password = ""
	}
	reply.Neighbors = neighbors
	return nil
}

func (s *SpeakerService) VRFs(_ *Empty, reply *VRFsReply) error {
	engine, err := s.current()
	if err != nil {
		return err
	}
	reply.VRFs = engine.VRFs()
	return nil
}

func (s *SpeakerService) Routes(_ *Empty, reply *RoutesReply) error {
	engine, err := s.current()
	if err != nil {
		return err
	}
	reply.Routes = engine.Routes()
	return nil
}

func (s *SpeakerService) Status(_ *Empty, reply *status.StatusSummary) error {
	if s.status == nil {
		return errors.New("status is not available")
	}
	*reply = s.status.GetStatusSummary()
	return nil
}

func (s *SpeakerService) AddNeighbor(fields *static.Fields, _ *Empty) error {
	engine, err := s.current()
	if err != nil {
		return err
	}
	return engine.AddNeighbor(s.ctx, *fields)
}

func (s *SpeakerService) AddVRF(fields *static.Fields, _ *Empty) error {
	engine, err := s.current()
	if err != nil {
		return err
	}
	return engine.AddVRF(s.ctx, *fields)
}

func (s *SpeakerService) AddPrefix(fields *static.Fields, _ *Empty) error {
	engine, err := s.current()
	if err != nil {
		return err
	}
	return engine.AddPrefix(s.ctx, *fields)
}

func (s *SpeakerService) AddEVPNPrefix(fields *static.Fields, _ *Empty) error {
	engine, err := s.current()
	if err != nil {
		return err
	}
	return engine.AddEVPNPrefix(s.ctx, *fields)
}
