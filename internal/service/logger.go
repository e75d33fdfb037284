package service

// Logger is the subset of the echo/gommon logger the services write to.
type Logger interface {
    Infof(format string, args ...interface{})
    Warnf(format string, args ...interface{})
    Errorf(format string, args ...interface{})
}
