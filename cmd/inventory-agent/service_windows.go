//go:build windows

package main

import (
	"golang.org/x/sys/windows/svc"
)

const windowsServiceName = "InventoryAgent"

// isWindowsService reports whether the Service Control Manager started the
// process. Call it before any console I/O.
func isWindowsService() bool {
	ok, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return ok
}

func hasConsole() bool { return !isWindowsService() }

type inventoryService struct {
	startFn func() (*agentComponents, error)
}

// runAsService hands control to the SCM. startFn runs once the SCM has
// accepted the start; its components are shut down on Stop or Shutdown.
func runAsService(startFn func() (*agentComponents, error)) error {
	return svc.Run(windowsServiceName, &inventoryService{startFn: startFn})
}

func (s *inventoryService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	const accepted = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	comps, err := s.startFn()
	if err != nil {
		log.Error("agent start failed", "error", err)
		changes <- svc.Status{State: svc.StopPending}
		return true, 1
	}

	changes <- svc.Status{State: svc.Running, Accepts: accepted}
	log.Info("agent running as Windows service")

	for cr := range r {
		switch cr.Cmd {
		case svc.Interrogate:
			changes <- cr.CurrentStatus
		case svc.Stop, svc.Shutdown:
			log.Info("SCM requested stop")
			changes <- svc.Status{State: svc.StopPending}
			shutdownAgent(comps)
			return false, 0
		default:
			log.Warn("unexpected SCM control request", "cmd", uint32(cr.Cmd))
		}
	}
	shutdownAgent(comps)
	return false, 0
}
