package job

import (
	"context"

	"github.com/xxxsen/notesync/internal/service"
)

type UpdateWikiPageJob struct {
	install *service.InstallService
}

func NewUpdateWikiPageJob(install *service.InstallService) *UpdateWikiPageJob {
	return &UpdateWikiPageJob{install: install}
}

func (j *UpdateWikiPageJob) Name() string {
	return service.JobUpdateWikiPage
}

func (j *UpdateWikiPageJob) Run(ctx context.Context) error {
	if j.install == nil {
		return nil
	}
	return j.install.UpdateWikiPage(ctx)
}
