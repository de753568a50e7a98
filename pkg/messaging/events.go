package messaging

type PostureUpdate struct {
	Posture uint8 `json:"posture"`
}

func (PostureUpdate) Name() string { return "posture_update" }

type CombatAction struct {
	Action string `json:"action"`
}

func (CombatAction) Name() string { return "combat_action" }

type SystemMessage struct {
	Text string `json:"text"`
}

func (SystemMessage) Name() string { return "system_message" }

type TimerUpdate struct {
	ToolID      uint64 `json:"tool_id"`
	RemainingMs int64  `json:"remaining_ms"`
}

func (TimerUpdate) Name() string { return "timer_update" }

type ServerTime struct {
	Time uint64 `json:"time"`
}

func (ServerTime) Name() string { return "server_time" }

type WeatherUpdate struct {
	Weather uint32  `json:"weather"`
	CloudX  float32 `json:"cloud_x"`
	CloudZ  float32 `json:"cloud_z"`
}

func (WeatherUpdate) Name() string { return "weather_update" }

type ObjectCreated struct {
	ObjectID uint64 `json:"object_id"`
	ParentID uint64 `json:"parent_id"`
	Kind     string `json:"kind"`
}

func (ObjectCreated) Name() string { return "object_created" }

type ObjectDestroyed struct {
	ObjectID uint64 `json:"object_id"`
}

func (ObjectDestroyed) Name() string { return "object_destroyed" }

type HamUpdate struct {
	Health    int32 `json:"health"`
	MaxHealth int32 `json:"max_health"`
}

func (HamUpdate) Name() string { return "ham_update" }

type StomachUpdate struct {
	Food  int32 `json:"food"`
	Drink int32 `json:"drink"`
}

func (StomachUpdate) Name() string { return "stomach_update" }

type GroupMissionUpdate struct {
	GroupID uint64   `json:"group_id"`
	Members []uint64 `json:"members"`
}

func (GroupMissionUpdate) Name() string { return "group_mission_update" }

type BuffTick struct {
	Buff      string `json:"buff"`
	TicksLeft uint32 `json:"ticks_left"`
}

func (BuffTick) Name() string { return "buff_tick" }

type BuffExpired struct {
	Buff string `json:"buff"`
}

func (BuffExpired) Name() string { return "buff_expired" }

type MissionExpired struct {
	MissionID uint64 `json:"mission_id"`
}

func (MissionExpired) Name() string { return "mission_expired" }

type PerformanceTick struct {
	PerformerID uint64 `json:"performer_id"`
}

func (PerformanceTick) Name() string { return "performance_tick" }

type ImageDesignTimeout struct {
	DesignerID uint64 `json:"designer_id"`
}

func (ImageDesignTimeout) Name() string { return "image_design_timeout" }

type ConversationEnded struct {
	NPCID uint64 `json:"npc_id"`
}

func (ConversationEnded) Name() string { return "conversation_ended" }

type LogoutCountdown struct {
	Remaining int32 `json:"remaining"`
}

func (LogoutCountdown) Name() string { return "logout_countdown" }

type RevivePrompt struct {
	PlayerID uint64 `json:"player_id"`
}

func (RevivePrompt) Name() string { return "revive_prompt" }

type NPCActivation struct {
	NPCID uint64 `json:"npc_id"`
	Tier  string `json:"tier"`
}

func (NPCActivation) Name() string { return "npc_activation" }
