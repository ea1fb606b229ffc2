package logging

import "go.uber.org/zap"

// Field constructors shared by every component so bus objects are named the
// same way in all log lines.

func Topic(name string) zap.Field {
	return zap.String("topic", name)
}

func Topics(names []string) zap.Field {
	return zap.Strings("topics", names)
}

func Segment(name string) zap.Field {
	return zap.String("segment", name)
}

func Path(path string) zap.Field {
	return zap.String("path", path)
}

func Size(bytes int) zap.Field {
	return zap.Int("size", bytes)
}
