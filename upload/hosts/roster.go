package hosts

import (
	"fmt"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/filedrop-io/go-filedrop/settings"
	"github.com/filedrop-io/go-filedrop/upload/network"
	"github.com/filedrop-io/go-filedrop/upload/progress"
)

// Roster builds the configured services in preference order. The custom
// service is included only when a definition is present, the S3 service only
// when its settings make it usable.
func Roster(config settings.Config, transport *network.Transport, progressRegistry *progress.Registry, logger log.Logger) ([]Service, error) {
	services := []Service{
		NewGofile(transport, config, logger),
		NewCatbox(transport, config),
		NewLitterbox(transport, config),
	}

	s3Service := NewS3(config, progressRegistry, logger)
	if ok, _ := s3Service.Accepts(File{}); ok || config.Service == "s3" {
		services = append(services, s3Service)
	}

	if config.CustomEndpointURL != "" || config.Service == "custom" {
		definition, err := config.Custom()
		if err != nil {
			return nil, fmt.Errorf("custom service definition: %w", err)
		}
		services = append(services, NewCustom(transport, definition, config.RequestTimeout))
	}

	return services, nil
}
