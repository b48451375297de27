package dynamo

// DynamoDB attribute names used in key, condition and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldMemberID       = "member_id"
	fieldIDPrefix       = "id_prefix"
	fieldEmail          = "email"
	fieldOwner          = "owner"
	fieldLoginChallenge = "login_challenge"
	fieldUpdatedAt      = "updated_at"
	fieldTTL            = "ttl"

	indexEmail    = "email-index"
	indexIDPrefix = "id_prefix-member_id-index"

	// emailClaimPrefix marks the uniqueness item written next to each member.
	emailClaimPrefix = "email#"
)
