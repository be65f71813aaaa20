// Package awssecurity provides the AWS collectors. Every collector issues one
// SDK call (or one paginated listing) per target and returns the records of
// internal/models; the orchestrator stores them, errors included.
package awssecurity

import (
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/providers/aws/common"
)

// Collectors builds the AWS collector set for one profile. Service clients
// are created lazily, once per region.
type Collectors struct {
	base    aws.Config
	factory secClientFactory

	mu      sync.Mutex
	clients map[string]*secClients
}

// NewCollectors returns Collectors wired to production SDK clients derived
// from base.
func NewCollectors(base aws.Config) *Collectors {
	return NewCollectorsWithFactory(base, newDefaultSecClients)
}

// NewCollectorsWithFactory returns Collectors that obtain clients from f.
func NewCollectorsWithFactory(base aws.Config, f secClientFactory) *Collectors {
	return &Collectors{base: base, factory: f, clients: make(map[string]*secClients)}
}

// clientsFor returns the clients of region. Global calls pass "".
func (c *Collectors) clientsFor(region string) *secClients {
	if region == "" {
		region = common.GlobalRegion
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[region]; ok {
		return cl
	}
	cfg := c.base.Copy()
	cfg.Region = region
	cl := c.factory(cfg)
	c.clients[region] = cl
	return cl
}

// All returns every AWS collector.
func (c *Collectors) All() []collect.Collector {
	userScope := func(_ cache.Scope, u models.AWSIAMUser) cache.Scope { return cache.Scope(u.UserName) }
	bucketScope := func(_ cache.Scope, b models.AWSS3Bucket) cache.Scope { return cache.Scope(b.Name) }
	clusterScope := func(parent cache.Scope, n models.AWSEKSClusterName) cache.Scope {
		return cache.JoinScope(string(parent), n.Name)
	}

	return []collect.Collector{
		collect.Global(models.KeyIAMAccountSummary, c.accountSummary),
		collect.Global(models.KeyIAMUsers, c.listUsers),
		collect.PerItem(models.KeyIAMLoginProfile, models.KeyIAMUsers, userScope, c.loginProfile),
		collect.PerItem(models.KeyIAMMFADevices, models.KeyIAMUsers, userScope, c.mfaDevices),

		collect.Global(models.KeyS3Buckets, c.listBuckets),
		collect.PerItem(models.KeyS3BucketEncryption, models.KeyS3Buckets, bucketScope, c.bucketEncryption),
		collect.PerItem(models.KeyS3BucketPolicy, models.KeyS3Buckets, bucketScope, c.bucketPolicyStatus),

		collect.Global(models.KeyCloudTrailTrails, c.describeTrails),

		collect.Regional(models.KeyEC2SecurityGroups, c.securityGroupRules),
		collect.Regional(models.KeyGuardDutyDetectors, c.guardDutyDetectors),
		collect.Regional(models.KeyCloudWatchAlarms, c.describeAlarms),
		collect.Regional(models.KeyConfigRecorders, c.configRecorders),
		collect.Regional(models.KeyRDSInstances, c.dbInstances),
		collect.Regional(models.KeyELBv2LoadBalancers, c.loadBalancers),

		collect.Regional(models.KeyEKSClusters, c.listClusters),
		collect.PerItem(models.KeyEKSCluster, models.KeyEKSClusters, clusterScope, c.describeCluster),
	}
}

// apiErrorCode returns the service error code of err, or "".
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
