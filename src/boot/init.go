package boot

import (
	"log"
	"tcs/src/common"
	"tcs/src/lib"
	"time"
)

const (
	sweepInterval    = time.Minute
	sweepGrace       = 30 * time.Second
	attemptRetention = time.Hour
)

func InitScheduler() {
	_, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
}

// StartAttemptSweeper registers the periodic job that expires attempts
// whose controller never finalized them and drops terminal ones past
// retention.
func StartAttemptSweeper(registry *common.AttemptRegistry) {
	id, err := lib.CreateCronJob(func() {
		registry.Sweep(sweepGrace, attemptRetention)
	}, sweepInterval)
	if err != nil {
		log.Printf("Error registering attempt sweeper: %s\n", err.Error())
		return
	}
	sched, err := lib.GetScheduler()
	if err != nil {
		return
	}
	sched.Start()
	log.Printf("Attempt sweeper registered: %s\n", *id)
}
