/*
Copyright 2024 FCG Cloud Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package payments

import (
	"fmt"
	"os"

	"github.com/fcgcloud/payments/cache"
	"github.com/fcgcloud/payments/config"
	"github.com/fcgcloud/payments/database"
	"github.com/fcgcloud/payments/model"
)

// Payments is the main service struct. It ties the datasource, the SQS
// queues and the status cache together for the processor, the consumer,
// the publisher and the API.
type Payments struct {
	queue       *Queue
	cache       cache.Cache
	datasource  database.IDataSource
	source      string
	publisherID string
}

// NewPayments initializes the service from configuration. The cache is
// optional: with no Redis DNS configured status queries simply skip
// caching.
func NewPayments(db database.IDataSource) (*Payments, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	newQueue, err := NewQueue(configuration)
	if err != nil {
		return nil, err
	}

	var statusCache cache.Cache
	if configuration.Redis.Dns != "" {
		statusCache, err = cache.NewCache()
		if err != nil {
			return nil, err
		}
	}

	host, err := os.Hostname()
	if err != nil {
		host = "payments"
	}

	newPayments := &Payments{
		datasource:  db,
		queue:       newQueue,
		cache:       statusCache,
		source:      configuration.ProjectName,
		publisherID: fmt.Sprintf("%s-%s", host, model.GenerateUUIDWithSuffix("pub")),
	}
	return newPayments, nil
}
