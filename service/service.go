package service

import (
	"os"

	"github.com/ATMackay/keyscraper/store"
	"github.com/sirupsen/logrus"
)

// Service is the search API application struct containing the record
// store, the http server and logger. It can be called to start and stop.
type Service struct {
	store  store.Store
	server *hTTPService
	logger *logrus.Entry
}

// New constructs a Service with a record store, logger and http server.
func New(port int, l *logrus.Entry, st store.Store) *Service {
	srv := &Service{
		store:  st,
		logger: l,
	}
	httpSrv := NewHTTPService(port, makeServiceAPIs(st, l), l)
	srv.server = httpSrv
	return srv
}

// Start creates the HTTP server.
func (s *Service) Start() error {
	s.logger.WithFields(logrus.Fields{
		"compilationDate": BuildDate,
		"gitCommit":       GitCommit(),
	}).Infof("starting %v service", ServiceName)
	if err := s.server.Start(); err != nil {
		return err
	}

	s.logger.Infof("listening on %v", s.server.Addr())
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Service) Stop(sig os.Signal) {
	s.logger.WithFields(logrus.Fields{"signal": sig}).Infof("stopping %v service", ServiceName)

	if err := s.server.Stop(); err != nil {
		s.logger.WithFields(logrus.Fields{"error": err}).Error("error stopping server")
	}
}

// Server exposes the http server externally.
func (s *Service) Server() *hTTPService {
	return s.server
}
