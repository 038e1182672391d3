package job

import (
	"context"

	"github.com/xxxsen/notesync/internal/service"
)

type TransferUsersJob struct {
	coordinator *service.Coordinator
}

func NewTransferUsersJob(coordinator *service.Coordinator) *TransferUsersJob {
	return &TransferUsersJob{coordinator: coordinator}
}

func (j *TransferUsersJob) Name() string {
	return service.JobTransferUsers
}

func (j *TransferUsersJob) Run(ctx context.Context) error {
	if j.coordinator == nil {
		return nil
	}
	return j.coordinator.Tick(ctx)
}
