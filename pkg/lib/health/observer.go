package health

import (
	"strconv"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/apk/ubik/pkg/lib"
	"github.com/apk/ubik/pkg/lib/job"
	"github.com/apk/ubik/pkg/lib/supervisor"
)

// Overall is the service name reporting the supervisor as a whole.
const Overall = ""

// ServiceNames returns one service name per job, in order. A job takes its
// display name; later jobs sharing it get "#2", "#3", ... appended.
func ServiceNames(jobs []*job.Job) []string {
	used := make(map[string]bool, len(jobs))
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		name := j.Name()
		for n := 2; used[name]; n++ {
			name = j.Name() + "#" + strconv.Itoa(n)
		}
		used[name] = true
		names = append(names, name)
	}
	return names
}

// Register declares one service per job, NOT_SERVING until it starts. Call
// it before the supervisor runs.
func (srv *Server) Register(jobs []*job.Job) []string {
	names := ServiceNames(jobs)
	srv.services = make(map[*job.Job]string, len(jobs))
	srv.hs.SetServingStatus(Overall, healthpb.HealthCheckResponse_SERVING)
	for i, j := range jobs {
		srv.services[j] = names[i]
		srv.hs.SetServingStatus(names[i], healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return names
}

// Service returns the service name reporting j.
func (srv *Server) Service(j *job.Job) string {
	if name, ok := srv.services[j]; ok {
		return name
	}
	return j.Name()
}

// ModeChanged marks the supervisor NOT_SERVING once shutdown begins.
func (srv *Server) ModeChanged(m supervisor.Mode) {
	srv.logger.Debug("health: mode", "mode", m.String())
	if m != supervisor.Normal {
		srv.hs.SetServingStatus(Overall, healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

func (srv *Server) JobStarted(j *job.Job) {
	srv.hs.SetServingStatus(srv.Service(j), healthpb.HealthCheckResponse_SERVING)
}

func (srv *Server) JobExited(j *job.Job, _ lib.ExitStatus) {
	srv.hs.SetServingStatus(srv.Service(j), healthpb.HealthCheckResponse_NOT_SERVING)
}

var _ supervisor.Observer = (*Server)(nil)
