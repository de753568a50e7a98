package world

import (
	"github.com/argus-labs/zone-engine/pkg/messaging"
	"github.com/argus-labs/zone-engine/pkg/zone/entity"
)

const (
	// shuttleBoardingLead is how long before touchdown a landing shuttle starts boarding.
	shuttleBoardingLead = 5000

	PostureLanded uint8 = 0
	PostureAway   uint8 = 2

	shuttleLandAnimation    = "land"
	shuttleTakeoffAnimation = "takeoff"
)

func (w *World) handleShuttleUpdate() {
	for _, id := range w.registry.OfKind(entity.KindShuttle) {
		_, s, ok := entity.Get[*entity.Shuttle](w.registry, id)
		if !ok {
			continue
		}
		w.bindTicketCollector(id, s)
		w.advanceShuttle(id, s)
	}
}

// bindTicketCollector links a shuttle with its ticket collector the first time the collector
// resolves. It is retried every tick until it succeeds.
func (w *World) bindTicketCollector(id entity.ID, s *entity.Shuttle) {
	if s.CollectorBound {
		return
	}
	_, c, ok := entity.Get[*entity.TicketCollector](w.registry, s.CollectorID)
	if !ok {
		return
	}
	if c.ShuttleID == 0 {
		c.ShuttleID = id
	}
	s.CollectorBound = true
}

// advanceShuttle moves a shuttle one second through its cycle:
// Away -> AboutBoarding -> InPort -> Away. Shuttles loaded mid-landing join at AboutBoarding.
func (w *World) advanceShuttle(id entity.ID, s *entity.Shuttle) {
	switch s.State {
	case entity.ShuttleAway:
		if next := s.AwayTime + second; next < s.AwayInterval {
			s.AwayTime = next
			return
		}
		s.Posture = PostureLanded
		s.AwayTime = 0
		s.State = entity.ShuttleAboutBoarding
		w.notifyShuttle(id, s.Posture, shuttleLandAnimation)

	case entity.ShuttleLanding:
		if next := s.LandingTime + second; next < s.LandingDuration-shuttleBoardingLead {
			s.LandingTime = next
			return
		}
		s.State = entity.ShuttleAboutBoarding

	case entity.ShuttleAboutBoarding:
		if next := s.LandingTime + second; next < s.LandingDuration {
			s.LandingTime = next
			return
		}
		s.LandingTime = 0
		s.State = entity.ShuttleInPort

	case entity.ShuttleInPort:
		if next := s.InPortTime + second; next < s.InPortInterval {
			s.InPortTime = next
			return
		}
		s.InPortTime = 0
		s.State = entity.ShuttleAway
		s.Posture = PostureAway
		w.notifyShuttle(id, s.Posture, shuttleTakeoffAnimation)
	}
}

func (w *World) notifyShuttle(id entity.ID, posture uint8, animation string) {
	scope := messaging.ToEntity(uint64(id))
	w.notifier.Notify(scope, messaging.PostureUpdate{Posture: posture})
	w.notifier.Notify(scope, messaging.CombatAction{Action: animation})
}
