package main

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var (
	addr = ":9002"
	prec = uint(64)
)

func init() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if lvl := os.Getenv("PIPESD_LOG_LEVEL"); lvl != "" {
		parsed, err := logrus.ParseLevel(lvl)
		if err != nil {
			logrus.WithError(err).
				Fatal("unable to parse PIPESD_LOG_LEVEL")
		}

		logrus.SetLevel(parsed)
	}

	if a := os.Getenv("PIPESD_ADDR"); a != "" {
		addr = a
	}

	if p := os.Getenv("PIPESD_PREC"); p != "" {
		parsed, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			logrus.WithError(err).
				Fatal("unable to parse PIPESD_PREC")
		}

		prec = uint(parsed)
	}
}

func main() {
	logger.WithFields(logrus.Fields{
		"addr": addr,
		"prec": prec,
	}).Info("booting server")

	srv := NewServer(addr, prec)

	logger.WithError(srv.ListenAndServe()).
		Fatal("server exited")
}
