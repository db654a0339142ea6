package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/secutils/core/internal/domain"
)

// Key layout (SPEC_FULL.md §4.1). Every logical table is a PK prefix; a
// handful of rows exist purely as secondary-index pointers (GSI-equivalent
// in a single-table design without a real GSI).

func userPK(email string) string { return "USER#" + domain.NormalizeEmail(email) }
func userHandlePK(handle string) string { return "USERHANDLE#" + domain.NormalizeHandle(handle) }
func userByIDPK(id uuid.UUID) string { return "USERBYID#" + id.String() }
func userSK() string { return "PROFILE" }

func userDataPK(userID uuid.UUID, namespace string) string {
	return fmt.Sprintf("USERDATA#%s#%s", userID, namespace)
}
func userDataSK(key string, ts int64) string { return fmt.Sprintf("%020d#%s", ts, key) }

func trackerPK(kind domain.TrackerKind, userID uuid.UUID) string {
	return fmt.Sprintf("TRACKER#%d#%s", kind, userID)
}
func trackerSK(name string) string { return name }

func trackerByIDPK(id uuid.UUID) string { return "TRACKERBYID#" + id.String() }
func trackerByJobPK(jobID uuid.UUID) string { return "TRACKERBYJOB#" + jobID.String() }

func revisionPK(trackerID uuid.UUID) string { return "TRACKERREV#" + trackerID.String() }
func revisionSK(unixNano int64) string { return fmt.Sprintf("%020d", unixNano) }

func schedJobPK(id uuid.UUID) string { return "SCHEDJOB#" + id.String() }
func schedJobListPK() string         { return "SCHEDJOBLIST" }
func schedJobListSK(nextTick uint64, id uuid.UUID) string {
	return fmt.Sprintf("%020d#%s", nextTick, id)
}

func notificationPK() string { return "NOTIFICATION" }
func notificationSK(id uint64) string { return fmt.Sprintf("%020d", id) }
func notificationCounterPK() string { return "NOTIFICATIONCOUNTER" }
func notificationCounterSK() string { return "COUNTER" }

func sharePK(userID uuid.UUID, kind domain.ShareResourceKind, resourceID uuid.UUID) string {
	return fmt.Sprintf("SHARE#%s#%d#%s", userID, kind, resourceID)
}
func shareSK() string { return "SHARE" }

func searchDocPK(id uint64) string { return fmt.Sprintf("SEARCHDOC#%020d", id) }
func searchDocSK() string          { return "DOC" }

func certTemplatePK(userID uuid.UUID) string { return "CERTTEMPLATE#" + userID.String() }
func cspPK(userID uuid.UUID) string          { return "CSP#" + userID.String() }

func trackerUnschedPK(kind domain.TrackerKind) string { return fmt.Sprintf("TRACKERUNSCHED#%d", kind) }
func trackerUnschedSK(id uuid.UUID) string            { return id.String() }
