package enrich

import "strings"

// Category names
const (
	CategoryCompute    = "Compute"
	CategoryStorage    = "Storage"
	CategoryDatabase   = "Database"
	CategoryNetworking = "Networking"
	CategoryAnalytics  = "Analytics"
	CategorySecurity   = "Security"
	CategoryManagement = "Management"
	CategoryOther      = "Other"
)

type categoryRule struct {
	category string
	keywords []string
}

// categoryTable is evaluated top to bottom; the first rule with a keyword
// contained in the service name (case-insensitive) wins.
var categoryTable = []categoryRule{
	{CategoryCompute, []string{"EC2", "Lambda", "ECS", "Fargate", "Batch",
		"Elastic Compute Cloud", "Virtual Machines", "Compute Engine", "Cloud Run", "Functions", "Kubernetes"}},
	{CategoryStorage, []string{"S3", "EBS", "EFS", "Glacier",
		"Simple Storage Service", "Elastic Block Store", "Elastic File System", "Blob", "Storage"}},
	{CategoryDatabase, []string{"RDS", "DynamoDB", "ElastiCache", "Redshift",
		"Database", "SQL", "Cosmos", "Spanner", "Bigtable", "Firestore"}},
	{CategoryNetworking, []string{"VPC", "CloudFront", "Route53", "Data Transfer", "NAT Gateway",
		"Route 53", "Virtual Private Cloud", "Virtual Network", "Load Balanc", "CDN", "DNS", "Bandwidth"}},
	{CategoryAnalytics, []string{"Athena", "EMR", "Kinesis", "QuickSight",
		"BigQuery", "Dataflow", "Synapse", "Glue"}},
	{CategorySecurity, []string{"IAM", "KMS", "Secrets Manager", "GuardDuty",
		"Key Vault", "Defender", "WAF"}},
	{CategoryManagement, []string{"CloudWatch", "Config", "Systems Manager",
		"CloudTrail", "Monitor", "Logging"}},
}

// lowered holds the table keywords lower-cased once
var lowered = func() [][]string {
	out := make([][]string, len(categoryTable))
	for i, rule := range categoryTable {
		for _, kw := range rule.keywords {
			out[i] = append(out[i], strings.ToLower(kw))
		}
	}
	return out
}()

// Categorize maps a service name to exactly one category, CategoryOther when
// no keyword matches.
func Categorize(service string) string {
	name := strings.ToLower(service)
	for i, rule := range categoryTable {
		for _, kw := range lowered[i] {
			if strings.Contains(name, kw) {
				return rule.category
			}
		}
	}
	return CategoryOther
}

// Categories lists every value Categorize can return, in table order
func Categories() []string {
	out := make([]string, 0, len(categoryTable)+1)
	for _, rule := range categoryTable {
		out = append(out, rule.category)
	}
	return append(out, CategoryOther)
}
