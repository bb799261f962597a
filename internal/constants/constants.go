package constants

// Paths that make up the boot layout we rewrite. The exact strings are load-bearing:
// RealInit and MagiskInit must have the same length so /init can be patched in place.
const (
	Init                = "/init"
	Sdcard              = "/sdcard"
	RamdiskSdcard       = "/first_stage_ramdisk/sdcard"
	RamdiskStorageSelf  = "/first_stage_ramdisk/storage/self"
	StorageSelf         = "/storage/self"
	SystemRealInit      = "/system/system/bin/init"
	RealInit            = "/system/bin/init"
	MagiskInit          = "/data/magiskinit"
	RedirectedInit      = "/data/init"
	DataDir             = "/data"
	BackupDir           = "/.backup"
	BackupInit          = "/.backup/init"
	BackupInitXz        = "/.backup/init.xz"
	OverlayDir          = "/overlay.d"
	StoragePrimaryEntry = "primary"

	ProcCmdline    = "/proc/cmdline"
	ProcBootconfig = "/proc/bootconfig"
	Kmsg           = "/dev/kmsg"
)

// Filesystem magic numbers that mean we are still running on the ramdisk root.
const (
	RamfsMagic uint32 = 0x858458f6
	TmpfsMagic uint32 = 0x01021994
)

const (
	OpPrepareData    = "prepare-data"
	OpStorageSymlink = "storage-symlink"
	OpMoveInit       = "move-init"
	OpBindInit       = "bind-init"
	OpRestoreRamdisk = "restore-ramdisk"
	OpPatchInit      = "patch-init"
	OpExecInit       = "exec-init"

	OpPatchSecondStage = "patch-second-stage"
	OpCloneAttr        = "clone-attr"
	OpBindSecondStage  = "bind-second-stage"

	OpTeardownStageOne = "teardown-stage-one"
	OpRemoveStageOne   = "remove-stage-one"
	OpRestoreArgv      = "restore-argv"
	OpClassifyRoot     = "classify-root"
	OpPatchRoot        = "patch-root"
)

const (
	ForceNormalBootKey = "androidboot.force_normal_boot"
	DebugKey           = "stageinit.debug"
	DebugEnv           = "STAGEINIT_DEBUG"
	HostCmdlineEnv     = "HOST_PROC_CMDLINE"
)
