package membership

// User-facing rejection messages.
const (
	// Accept
	MsgUserInvalid              = "User invalid."
	MsgInvalidToken             = "Invalid token."
	MsgInvitationAlreadyPending = "Invitation already accepted. You will receive an email when your organization membership is confirmed."
	MsgAlreadyMember            = "You are already part of this organization."
	MsgEmailMismatch            = "User email does not match invite."
	MsgOrganizationInvalid      = "Organization invalid."
	MsgUserNotFoundInOrg        = "User not found within organization."
	MsgAccessRevoked            = "Your organization access has been revoked."
	MsgAlreadyAccepted          = "Already accepted."
	MsgFreeOrgAdminOnAccept     = "You can only be an admin of one free organization."
	MsgSingleOrgJoinThis        = "You may not join this organization until you leave or remove all other organizations."
	MsgSingleOrgJoinOther       = "You cannot join this organization because you are a member of another organization which forbids it"
	MsgTwoFactorRequiredToJoin  = "You cannot join this organization until you enable two-step login on your user account."

	// Confirm
	MsgUserNotValid               = "User not valid."
	MsgFreeOrgAdminOnConfirm      = "User can only be an admin of one free organization."
	MsgTwoFactorRequiredToConfirm = "User does not have two-step login enabled."
	MsgSingleOrgConfirmThis       = "Cannot confirm this member to the organization until they leave or remove all other organizations."
	MsgSingleOrgConfirmOther      = "Cannot confirm this member to the organization because they are in another organization which forbids it."

	// Revoke
	MsgCannotRevokeSelf       = "You cannot revoke yourself."
	MsgOnlyOwnersRevokeOwners = "Only owners can revoke other owners."
	MsgAlreadyRevoked         = "Already revoked."
	MsgMustHaveConfirmedOwner = "Organization must have at least one confirmed owner."
	MsgUsersInvalid           = "Users invalid."
	MsgUnexpectedActor        = "Action was performed by an unexpected type."
	MsgInvalidUsers           = "Invalid users."
	MsgUserAlreadyRevoked     = "User is already revoked."

	// Restore
	MsgCannotRestoreSelf        = "You cannot restore yourself."
	MsgOnlyOwnersRestoreOwners  = "Only owners can restore other owners."
	MsgAlreadyActive            = "Already active."
	MsgFreeOrgAdminOnRestore    = "User is an owner/admin of another free organization. Please have them upgrade to a paid plan to restore their account."
	MsgTwoFactorRequiredRestore = "You cannot restore this user until they enable two-step login on their user account."
	MsgSingleOrgRestoreThis     = "You cannot restore this user until they leave or remove all other organizations."
	MsgSingleOrgRestoreOther    = "You cannot restore this user because they are a member of another organization which forbids it"

	// Remove and delete
	MsgUserNotFound             = "User not found."
	MsgCannotRemoveSelf         = "You cannot remove yourself."
	MsgOnlyOwnersDeleteOwners   = "Only owners can delete other owners."
	MsgOnlyConfirmedOrRevoked   = "Only confirmed or revoked members can be deleted."
	MsgClaimedUseClaimedDelete  = "Member is claimed by the organization. Use the claimed account deletion instead."
	MsgRemoveClaimedAccount     = "Cannot remove member accounts claimed by the organization. To offboard a member, revoke or delete the account."
	MsgClaimedCannotLeave       = "Claimed user account cannot leave claiming organization. Contact your organization administrator for additional details."
	MsgInvalidUser              = "Invalid user."
	MsgCannotDeleteInvited      = "You cannot delete a member with Invited status."
	MsgCannotDeleteSelf         = "You cannot delete yourself."
	MsgNotClaimed               = "Member is not claimed by the organization."
	MsgSoleOwnerOfOrganization  = "Cannot delete this user because it is the sole owner of at least one organization. Please delete these organizations or upgrade another user."
	MsgSoleOwnerOfProvider      = "Cannot delete this user because it is the sole owner of at least one provider. Please delete these providers or upgrade another user."
	MsgCustomCannotDeleteAdmins = "Custom users can not delete admins."
	MsgMemberNotFound           = "Member not found."
	MsgNotManaged               = "Member is not managed by the organization."

	// Invite
	MsgOrganizationNotFound     = "Organization not found."
	MsgInvalidEmail             = "Invalid email address: %s"
	MsgNoInvites                = "No invites provided."
	MsgOnlyOwnersInviteOwners   = "Only an Owner can configure another Owner's account."
	MsgCustomCannotInviteAdmins = "Custom users can not manage Admins or Owners."
)
