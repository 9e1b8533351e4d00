package core

// permissionGrant is one entry of the registry's /my_permissions listing.
type permissionGrant struct {
	CombinedPermission string `json:"combined_permission"`
}

// Permissions are the flags this service cares about, flattened from the
// registry's grant list.
type Permissions struct {
	ManageEvent              bool
	ApplyOutsideDeadline     bool
	SeeApplications          bool
	ManageApplications       bool
	SetBoardCommentAndStatus bool
	ManagePaxLimits          bool
	SeeMemberslists          bool
	UploadMemberslist        bool
	EditMemberslist          bool
	SetMemberslistFeePaid    bool
	ManagePlenaries          bool
	MarkAttendance           bool
	ManagePositions          bool
	UseMassmailer            bool
}

func permissionsFromGrants(grants []permissionGrant) *Permissions {
	permissions := &Permissions{}
	for _, grant := range grants {
		switch grant.CombinedPermission {
		case "manage_event:statutory":
			permissions.ManageEvent = true
		case "apply_outside_deadline:statutory":
			permissions.ApplyOutsideDeadline = true
		case "see_applications:statutory":
			permissions.SeeApplications = true
		case "manage_applications:statutory":
			permissions.ManageApplications = true
		case "set_board_comment_and_status:statutory":
			permissions.SetBoardCommentAndStatus = true
		case "manage_paxlimits:statutory":
			permissions.ManagePaxLimits = true
		case "see_memberslists:statutory":
			permissions.SeeMemberslists = true
		case "upload_memberslist:statutory":
			permissions.UploadMemberslist = true
		case "edit_memberslist:statutory":
			permissions.EditMemberslist = true
		case "set_memberslists_fee_paid:statutory":
			permissions.SetMemberslistFeePaid = true
		case "manage_plenaries:statutory":
			permissions.ManagePlenaries = true
		case "mark_attendance:statutory":
			permissions.MarkAttendance = true
		case "manage_positions:statutory":
			permissions.ManagePositions = true
		case "use_massmailer:statutory":
			permissions.UseMassmailer = true
		}
	}
	return permissions
}

// SeePlenaries: anyone who can manage plenaries or mark attendance can see them.
func (p *Permissions) SeePlenaries() bool {
	return p.ManagePlenaries || p.MarkAttendance
}
