package job

import "github.com/Giorgio223/tradebull/internal/event"

type SendEventJob struct {
	EventMessage event.Message
	Pusher       event.Publisher
}

func (job *SendEventJob) Execute() {
	err := job.Pusher.TriggerEvent(job.EventMessage)
	if err != nil {
		return
	}
}
