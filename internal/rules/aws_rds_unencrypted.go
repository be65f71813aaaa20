package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

// AWSRDSUnencryptedRule flags RDS instances without storage encryption.
type AWSRDSUnencryptedRule struct{}

func (r AWSRDSUnencryptedRule) ID() string { return "RDS_UNENCRYPTED" }

func (r AWSRDSUnencryptedRule) Metadata() Metadata {
	return Metadata{
		ID:          r.ID(),
		Title:       "RDS Storage Encryption Disabled",
		Category:    "RDS",
		Domain:      "Databases",
		Severity:    models.SeverityCritical,
		Description: "Ensures RDS database instances encrypt their storage at rest.",
		Link:        "https://docs.aws.amazon.com/AmazonRDS/latest/UserGuide/Overview.Encryption.html",
		RecommendedAction: "Enable storage encryption for RDS instances. Encryption must be set at creation time; " +
			"to encrypt an existing instance, take a snapshot, copy it with encryption enabled, and restore from that snapshot.",
		APIs:             []cache.Key{models.KeyRDSInstances},
		RealtimeTriggers: []string{"rds:CreateDBInstance", "rds:RestoreDBInstanceFromDBSnapshot"},
		Compliance: map[string]string{
			"cis1": "2.3.1 Ensure that encryption is enabled for RDS Instances",
		},
	}
}

func (r AWSRDSUnencryptedRule) Evaluate(rctx *RuleContext) error {
	forEachRegion(rctx, models.KeyRDSInstances, "RDS instances", func(region string, l Lookup) {
		if l.State == Empty {
			pass(rctx, "No RDS instances found", region, "")
			return
		}
		instances, ok := decode[models.AWSRDSInstance](rctx, l, region, "RDS instances")
		if !ok {
			return
		}
		for _, inst := range instances {
			resource := naming.AWSARN("rds", region, rctx.Settings.Account, "db:"+inst.DBInstanceID)
			if inst.StorageEncrypted {
				pass(rctx, fmt.Sprintf("RDS instance %s has storage encryption enabled", inst.DBInstanceID), region, resource)
				continue
			}
			fail(rctx, fmt.Sprintf("RDS instance %s (%s) does not have storage encryption enabled", inst.DBInstanceID, inst.Engine), region, resource)
		}
	})
	return nil
}
