package model

const (
	AppServiceName = "timelapse_exporter"
	NamespaceName  = "printforge"
)

var versions = []string{
	"1.1",
	"1.0",
}

var (
	CurrentVersion = versions[0]
)
