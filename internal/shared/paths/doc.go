// Package paths resolves bus object names to their host-wide kernel paths.
//
// Every named object lives as a file in one directory (tmpfs /dev/shm by
// default), distinguished from unrelated software by a fixed prefix.
// Semaphores carry the "sem." marker the C library uses for its own named
// semaphores, so a listing of the directory reads the same way.
//
// # Directory Layout
//
//	/dev/shm/
//	  ├── shmbus_imu          (segment "imu")
//	  ├── sem.shmbus_imu_shm  (mutex of segment "imu", initial value 1)
//	  ├── sem.shmbus_imu      (topic "imu", initial value 0)
//	  └── .tmp-<uuid>         (object still being initialized)
//
// # Usage
//
//	ns := paths.New("/dev/shm", "shmbus_", 0o644)
//
//	if err := ns.ValidateTopicName("imu"); err != nil {
//	    return err
//	}
//	topicFile := ns.SemaphorePath("imu")
//	mutexFile := ns.SemaphorePath(paths.MutexName("imu"))
package paths
